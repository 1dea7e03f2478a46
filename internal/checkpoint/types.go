package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// JobMeta carries the translation parameters fixed for a job's lifetime.
type JobMeta struct {
	SourceLang      string
	TargetLang      string
	ModelName       string
	TotalParagraphs int
}

// Job is the reconstructed durable state of one resumable translation run.
type Job struct {
	JobID string
	JobMeta
	CreatedAt time.Time
	UpdatedAt time.Time

	// Originals has TotalParagraphs entries; slots never checkpointed are
	// empty strings.
	Originals []string
	// Translated is sparse, keyed by paragraph index.
	Translated map[int]string
}

// Completed is derived, never stored.
func (j *Job) Completed() int {
	if j == nil {
		return 0
	}
	return len(j.Translated)
}

// TranslatedText joins the translated slots in index order with blank-line
// separators, skipping untranslated slots.
func (j *Job) TranslatedText() string {
	if j == nil {
		return ""
	}
	parts := make([]string, 0, len(j.Translated))
	for i := 0; i < j.TotalParagraphs; i++ {
		if text, ok := j.Translated[i]; ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// JobID derives a stable identifier from the source document's name and byte
// size. Two uploads of an identical file collide onto the same job
// deliberately, so a translation can resume across sessions.
func JobID(name string, size int64) string {
	return fmt.Sprintf("%s_%d", name, size)
}

// Store persists per-paragraph translation progress.
//
// Writes are atomic at (job_id, paragraph_idx) granularity and safe under
// concurrent calls from workers of the same job. Two workers writing the
// same index is not expected (index ownership is exclusive), but if it
// happens the last write wins.
type Store interface {
	// Load reconstructs a job's progress, or reports absence.
	Load(ctx context.Context, jobID string) (*Job, bool, error)
	// UpsertParagraph records one translated paragraph. It is idempotent:
	// writing the same index twice overwrites translated_text and bumps the
	// job's updated_at. The job row is created on the first call.
	UpsertParagraph(ctx context.Context, jobID string, idx int, original, translated string, meta JobMeta) error
	// Delete removes the job row and all its paragraph rows.
	Delete(ctx context.Context, jobID string) error
}
