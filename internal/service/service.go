package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/dkurilov/paratrans/internal/checkpoint"
	"github.com/dkurilov/paratrans/internal/config"
	"github.com/dkurilov/paratrans/internal/document"
	"github.com/dkurilov/paratrans/internal/jobs"
	"github.com/dkurilov/paratrans/internal/scheduler"
	"github.com/dkurilov/paratrans/internal/segment"
	"github.com/dkurilov/paratrans/internal/translator"
	"github.com/dkurilov/paratrans/pkg/log"
)

// Service ties the pipeline together: documents arrive via the inbox scanner
// or the HTTP API, flow through the job queue, and each job runs extraction,
// segmentation and scheduled translation before landing in the output dir.
type Service struct {
	cfg   *config.Config
	store checkpoint.Store
	queue *jobs.Queue
	tr    translator.Translator
	cron  *cron.Cron

	sf singleflight.Group

	mu       sync.Mutex
	stopped  map[string]bool
	progress map[string]jobProgress
}

type jobProgress struct {
	Done    int
	Total   int
	Preview string
}

func New(cfg *config.Config, store checkpoint.Store, queue *jobs.Queue, tr translator.Translator, c *cron.Cron) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		queue:    queue,
		tr:       tr,
		cron:     c,
		stopped:  make(map[string]bool),
		progress: make(map[string]jobProgress),
	}
}

// Start launches queue workers and schedules the inbox scanner.
func (s *Service) Start(ctx context.Context) error {
	s.queue.Start(s.execute)

	if s.cron != nil && s.cfg.Pipeline.ScanCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.Pipeline.ScanCron, func() {
			_, _, _ = s.sf.Do("inbox-scan", func() (any, error) {
				s.ScanInbox(ctx)
				return nil, nil
			})
		}); err != nil {
			return fmt.Errorf("schedule inbox scan: %w", err)
		}
	}
	return nil
}

// EnqueueDocument queues a document for translation. Language fields fall
// back to the configured defaults; empty source means auto-detect.
func (s *Service) EnqueueDocument(path, sourceLang, targetLang, model string) (*jobs.TranslationJob, bool, error) {
	if !document.SupportedExt(path) {
		return nil, false, fmt.Errorf("unsupported document type: %s", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, false, fmt.Errorf("document not accessible: %w", err)
	}

	if targetLang == "" {
		targetLang = s.cfg.Translate.TargetLanguage.String()
	}
	if sourceLang == "" && s.cfg.Translate.SourceLanguage != language.Und {
		sourceLang = s.cfg.Translate.SourceLanguage.String()
	}
	if model == "" {
		model = s.cfg.LLM.Model
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    "api",
		DedupeKey: fmt.Sprintf("%s|%s|%s", path, sourceLang, targetLang),
		Payload: jobs.JobPayload{
			DocumentPath: path,
			SourceLang:   sourceLang,
			TargetLang:   targetLang,
			ModelName:    model,
		},
	})
	return job, created, nil
}

// ScanInbox enqueues every supported document found in the inbox directory.
func (s *Service) ScanInbox(ctx context.Context) {
	dir := s.cfg.Pipeline.InboxDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("Inbox scan failed for %s: %v", dir, err)
		}
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !document.SupportedExt(path) {
			continue
		}
		if s.outputExists(path, s.cfg.Translate.TargetLanguage.String()) {
			continue
		}

		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    "scanner",
			DedupeKey: fmt.Sprintf("%s|%s|%s", path, "", s.cfg.Translate.TargetLanguage.String()),
			Payload: jobs.JobPayload{
				DocumentPath: path,
				TargetLang:   s.cfg.Translate.TargetLanguage.String(),
				ModelName:    s.cfg.LLM.Model,
			},
		})
		if created {
			log.Info("Inbox scan enqueued %s as job %s", entry.Name(), job.ID)
		}
	}
}

// StopJob requests a cooperative stop of a running job. The checkpoint is
// kept so a later enqueue resumes the work.
func (s *Service) StopJob(queueJobID string) bool {
	job, ok := s.queue.Get(queueJobID)
	if !ok || job.Status != jobs.StatusRunning {
		return false
	}
	s.mu.Lock()
	s.stopped[queueJobID] = true
	s.mu.Unlock()
	return true
}

// Progress reports resolved/total paragraph counts for a running job.
func (s *Service) Progress(queueJobID string) (done, total int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[queueJobID]
	return p.Done, p.Total, ok
}

// Preview returns the latest joined-document preview for a running job.
// Empty unless streaming is enabled and the job has received chunks.
func (s *Service) Preview(queueJobID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[queueJobID]
	return p.Preview, ok
}

// CheckpointProgress reads durable progress for a queue job from the
// checkpoint store. Used when the job is not actively running, for example
// after a stop or a restart.
func (s *Service) CheckpointProgress(ctx context.Context, job *jobs.TranslationJob) (done, total int, found bool) {
	info, err := os.Stat(job.Payload.DocumentPath)
	if err != nil {
		return 0, 0, false
	}
	cp, ok, err := s.store.Load(ctx, checkpoint.JobID(filepath.Base(job.Payload.DocumentPath), info.Size()))
	if err != nil || !ok {
		return 0, 0, false
	}
	return cp.Completed(), cp.TotalParagraphs, true
}

// execute runs one queue job end to end. Concurrent jobs for the same
// document collapse onto one run via singleflight on the checkpoint ID.
func (s *Service) execute(ctx context.Context, job *jobs.TranslationJob) error {
	defer func() {
		s.mu.Lock()
		delete(s.stopped, job.ID)
		delete(s.progress, job.ID)
		s.mu.Unlock()
	}()

	doc, err := document.Extract(job.Payload.DocumentPath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", job.Payload.DocumentPath, err)
	}

	sourceLang := langName(job.Payload.SourceLang)
	if sourceLang == "" {
		sourceLang = langName(doc.Language.String())
		log.Info("Job %s: detected source language %q for %s", job.ID, sourceLang, doc.Name)
	}
	targetLang := langName(job.Payload.TargetLang)
	if targetLang == "" {
		return fmt.Errorf("job %s has no target language", job.ID)
	}

	checkpointID := doc.JobID()
	result, err, _ := s.sf.Do(checkpointID, func() (any, error) {
		return s.runTranslation(ctx, job, doc, checkpointID, sourceLang, targetLang)
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrStopped) {
			return jobs.ErrStopped
		}
		return err
	}

	text, _ := result.(string)
	outPath := s.outputPath(doc.Path, job.Payload.TargetLang)
	if err := s.writeOutput(outPath, text); err != nil {
		return err
	}
	log.Info("Job %s: wrote %d characters to %s", job.ID, len(text), outPath)
	return nil
}

func (s *Service) runTranslation(ctx context.Context, job *jobs.TranslationJob, doc *document.Document, checkpointID, sourceLang, targetLang string) (string, error) {
	paragraphs := segment.Split(doc.Text, s.cfg.Segment.MinLength, s.cfg.Segment.MaxSize)
	if len(paragraphs) == 0 {
		return "", fmt.Errorf("document %s has no translatable text", doc.Name)
	}

	metrics := segment.Measure(paragraphs)
	log.Info("Job %s: %d paragraphs (avg %.0f chars, max %d) from %s",
		job.ID, metrics.Count, metrics.AvgSize, metrics.MaxSize, doc.Name)

	seed := s.loadSeed(ctx, checkpointID, len(paragraphs))
	if len(seed) > 0 {
		log.Info("Job %s: resuming from checkpoint with %d of %d paragraphs done",
			job.ID, len(seed), len(paragraphs))
	}

	opts := scheduler.Options{
		JobID: checkpointID,
		Meta: checkpoint.JobMeta{
			SourceLang:      sourceLang,
			TargetLang:      targetLang,
			ModelName:       job.Payload.ModelName,
			TotalParagraphs: len(paragraphs),
		},
		Workers:    s.cfg.Translate.WorkerCount,
		MaxRetries: s.cfg.Translate.MaxRetries,
		Stream:     s.cfg.Translate.Stream,
		OnProgress: func(done, total int) {
			s.mu.Lock()
			p := s.progress[job.ID]
			p.Done, p.Total = done, total
			s.progress[job.ID] = p
			s.mu.Unlock()
		},
		StopCheck: func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.stopped[job.ID]
		},
	}
	if opts.Stream {
		opts.OnChunk = func(_ int, _ string, preview string) {
			s.mu.Lock()
			p := s.progress[job.ID]
			p.Preview = preview
			s.progress[job.ID] = p
			s.mu.Unlock()
		}
	}

	sched := scheduler.New(s.tr, s.store)
	return sched.Run(ctx, paragraphs, seed, opts)
}

// loadSeed pulls checkpointed translations, discarding a checkpoint whose
// paragraph count no longer matches the current segmentation (the document
// or segment bounds changed since the previous run).
func (s *Service) loadSeed(ctx context.Context, checkpointID string, total int) map[int]string {
	existing, found, err := s.store.Load(ctx, checkpointID)
	if err != nil {
		log.Warn("Checkpoint load for %s failed, starting fresh: %v", checkpointID, err)
		return nil
	}
	if !found {
		return nil
	}
	if existing.TotalParagraphs != total {
		log.Warn("Checkpoint %s covers %d paragraphs but document now has %d, discarding",
			checkpointID, existing.TotalParagraphs, total)
		if err := s.store.Delete(ctx, checkpointID); err != nil {
			log.Warn("Failed to discard stale checkpoint %s: %v", checkpointID, err)
		}
		return nil
	}
	return existing.Translated
}

func (s *Service) outputPath(docPath, targetLang string) string {
	base := filepath.Base(docPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if targetLang == "" {
		targetLang = s.cfg.Translate.TargetLanguage.String()
	}
	return filepath.Join(s.cfg.Pipeline.OutputDir, fmt.Sprintf("%s.%s.txt", name, targetLang))
}

func (s *Service) outputExists(docPath, targetLang string) bool {
	_, err := os.Stat(s.outputPath(docPath, targetLang))
	return err == nil
}

func (s *Service) writeOutput(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// langName renders a BCP 47 tag as an English language name for prompts.
// Unparseable input passes through unchanged so callers can also supply
// plain names like "Arabic".
func langName(code string) string {
	if code == "" || code == language.Und.String() {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return name
}
