package checkpoint

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dkurilov/paratrans/internal/jobs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore backs both paragraph checkpoints and queue job persistence
// with a single internally synchronized SQLite handle.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)
var _ jobs.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) Load(ctx context.Context, jobID string) (*Job, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, source_lang, target_lang, model_name, total_paragraphs, created_at, updated_at
		 FROM jobs
		 WHERE job_id = ?`,
		jobID,
	)

	job := &Job{Translated: make(map[int]string)}
	if err := row.Scan(
		&job.JobID,
		&job.SourceLang,
		&job.TargetLang,
		&job.ModelName,
		&job.TotalParagraphs,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}

	if job.TotalParagraphs > 0 {
		job.Originals = make([]string, job.TotalParagraphs)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT paragraph_idx, original_text, translated_text
		 FROM paragraphs
		 WHERE job_id = ?
		 ORDER BY paragraph_idx ASC`,
		jobID,
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var original string
		var translated sql.NullString
		if err := rows.Scan(&idx, &original, &translated); err != nil {
			return nil, false, err
		}
		if idx >= 0 && idx < len(job.Originals) {
			job.Originals[idx] = original
		}
		if translated.Valid && translated.String != "" {
			job.Translated[idx] = translated.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *SQLiteStore) UpsertParagraph(ctx context.Context, jobID string, idx int, original, translated string, meta JobMeta) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (job_id, source_lang, target_lang, model_name, total_paragraphs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET updated_at=excluded.updated_at`,
		jobID,
		meta.SourceLang,
		meta.TargetLang,
		meta.ModelName,
		meta.TotalParagraphs,
		now,
		now,
	); err != nil {
		return err
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO paragraphs (job_id, paragraph_idx, original_text, translated_text)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_id, paragraph_idx) DO UPDATE SET translated_text=excluded.translated_text`,
		jobID,
		idx,
		original,
		translated,
	)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, jobID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM paragraphs WHERE job_id = ?`, jobID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, jobID); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadJobs restores queue jobs for restart recovery.
func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.TranslationJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, document_path, source_lang, target_lang, model_name, status, error, created_at, updated_at
		 FROM queue_jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.TranslationJob, 0)
	for rows.Next() {
		var item jobs.TranslationJob
		var status string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&item.Payload.DocumentPath,
			&item.Payload.SourceLang,
			&item.Payload.TargetLang,
			&item.Payload.ModelName,
			&status,
			&item.Error,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.TranslationJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO queue_jobs (
			id, source, dedupe_key, document_path, source_lang, target_lang, model_name, status, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			document_path=excluded.document_path,
			source_lang=excluded.source_lang,
			target_lang=excluded.target_lang,
			model_name=excluded.model_name,
			status=excluded.status,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		job.Payload.DocumentPath,
		job.Payload.SourceLang,
		job.Payload.TargetLang,
		job.Payload.ModelName,
		string(job.Status),
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_jobs WHERE id = ?`, jobID)
	return err
}
