package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkurilov/paratrans/internal/checkpoint"
	"github.com/dkurilov/paratrans/internal/translator"
	"github.com/dkurilov/paratrans/pkg/log"
)

// ErrStopped is returned when a run ends because the stop check fired.
// The checkpoint is preserved so a later run resumes where this one left off.
var ErrStopped = errors.New("translation stopped by request")

const (
	defaultWorkers     = 5
	defaultMaxRetries  = 3
	defaultBackoffUnit = time.Second
)

// Options configures one scheduler run.
type Options struct {
	// JobID keys the checkpoint rows for this run.
	JobID string
	// Meta is written alongside every checkpoint row.
	Meta checkpoint.JobMeta
	// ResumeFrom skips indices below it; their original text passes through
	// to the output untranslated unless a seed entry covers them.
	ResumeFrom int
	// Workers caps concurrent provider calls (default 5).
	Workers int
	// MaxRetries is the attempt budget per paragraph (default 3).
	MaxRetries int

	// Stream enables provider streaming; OnChunk then receives the paragraph
	// index, the raw delta and a live joined preview of the whole document.
	Stream  bool
	OnChunk func(paragraphIndex int, chunk, preview string)
	// OnProgress reports resolved paragraph counts. Calls are monotonic in
	// done even though workers finish out of order.
	OnProgress func(done, total int)
	// StopCheck is polled before each paragraph starts and between retries.
	// Returning true winds the run down cooperatively: in-flight provider
	// calls finish and checkpoint, unstarted paragraphs are skipped.
	StopCheck func() bool

	// BackoffUnit scales retry delays; tests shrink it. Zero means one second.
	BackoffUnit time.Duration
}

// Scheduler fans paragraphs out to a bounded worker pool, checkpointing each
// success so interrupted runs resume instead of restarting.
type Scheduler struct {
	translator translator.Translator
	store      checkpoint.Store
}

func New(tr translator.Translator, store checkpoint.Store) *Scheduler {
	return &Scheduler{translator: tr, store: store}
}

// runState is the shared mutable state of one run. mu guards slots, the
// resolved counter and checkpoint writes; cbMu orders progress callbacks.
type runState struct {
	mu       sync.Mutex
	slots    []string
	resolved int

	cbMu         sync.Mutex
	lastReported int

	stopped atomic.Bool
}

// Run translates every unseeded paragraph and returns the full document text
// joined with blank lines. seed maps paragraph index to an already translated
// text (typically loaded from the checkpoint store); seeded indices are not
// sent to the provider again.
//
// An auth failure aborts the whole run. Other failures retry with per-kind
// backoff and, once the attempt budget is spent, soft-fail: the original text
// is kept, annotated, and deliberately not checkpointed so the next run
// retries it.
func (s *Scheduler) Run(ctx context.Context, paragraphs []string, seed map[int]string, opts Options) (string, error) {
	total := len(paragraphs)
	if total == 0 {
		return "", nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	unit := opts.BackoffUnit
	if unit <= 0 {
		unit = defaultBackoffUnit
	}

	state := &runState{slots: make([]string, total)}
	for idx, text := range seed {
		if idx < 0 || idx >= total {
			continue
		}
		state.slots[idx] = text
		state.resolved++
	}
	// Indices below ResumeFrom pass through untranslated.
	for idx := 0; idx < opts.ResumeFrom && idx < total; idx++ {
		if state.slots[idx] == "" {
			state.slots[idx] = paragraphs[idx]
			state.resolved++
		}
	}

	s.reportProgress(state, opts, total)

	pending := make([]int, 0, total)
	for idx := opts.ResumeFrom; idx < total; idx++ {
		if state.slots[idx] == "" {
			pending = append(pending, idx)
		}
	}
	if len(pending) == 0 {
		return s.finish(ctx, state, opts)
	}

	log.Info("Job %s: translating %d of %d paragraphs with %d workers",
		opts.JobID, len(pending), total, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, idx := range pending {
		idx := idx
		if s.stopRequested(state, opts) {
			break
		}
		g.Go(func() error {
			return s.translateOne(gctx, paragraphs[idx], idx, state, opts, maxRetries, unit)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrStopped) {
			return "", ErrStopped
		}
		return "", err
	}
	if state.stopped.Load() {
		return "", ErrStopped
	}

	return s.finish(ctx, state, opts)
}

func (s *Scheduler) translateOne(ctx context.Context, original string, idx int, state *runState, opts Options, maxRetries int, unit time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		// A stop skips this paragraph without failing the group, so workers
		// already inside a provider call can finish and checkpoint.
		if s.stopRequested(state, opts) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			if state.stopped.Load() {
				return ErrStopped
			}
			return err
		}

		req := translator.Request{
			Text:       original,
			SourceLang: opts.Meta.SourceLang,
			TargetLang: opts.Meta.TargetLang,
			Model:      opts.Meta.ModelName,
		}
		if opts.Stream && opts.OnChunk != nil {
			req.Stream = true
			req.OnChunk = func(chunk, accumulated string) {
				opts.OnChunk(idx, chunk, s.previewWith(state, idx, accumulated))
			}
		}

		translated, err := s.translator.TranslateParagraph(ctx, req)
		if err == nil {
			s.commit(ctx, state, opts, idx, original, translated, true)
			return nil
		}
		lastErr = err

		kind := translator.KindOf(err)
		if kind == translator.KindAuth {
			log.Error("Job %s: paragraph %d: fatal auth failure: %v", opts.JobID, idx, err)
			return err
		}

		log.Warn("Job %s: paragraph %d attempt %d/%d failed (%s): %v",
			opts.JobID, idx, attempt+1, maxRetries, kind, err)
		if attempt < maxRetries-1 {
			if err := sleepCtx(ctx, backoffDelay(kind, attempt, unit)); err != nil {
				if state.stopped.Load() {
					return ErrStopped
				}
				return err
			}
		}
	}

	// Attempt budget spent: keep the original annotated, skip the checkpoint
	// so the next run retries this paragraph.
	annotated := fmt.Sprintf("%s [translation error: %v]", original, lastErr)
	s.commit(ctx, state, opts, idx, original, annotated, false)
	return nil
}

func (s *Scheduler) commit(ctx context.Context, state *runState, opts Options, idx int, original, text string, persist bool) {
	state.mu.Lock()
	state.slots[idx] = text
	state.resolved++
	if persist && s.store != nil {
		if err := s.store.UpsertParagraph(ctx, opts.JobID, idx, original, text, opts.Meta); err != nil {
			log.Warn("Job %s: checkpoint write for paragraph %d failed: %v", opts.JobID, idx, err)
		}
	}
	state.mu.Unlock()

	s.reportProgress(state, opts, len(state.slots))
}

// reportProgress delivers monotonic counts without holding the state lock
// across the callback.
func (s *Scheduler) reportProgress(state *runState, opts Options, total int) {
	if opts.OnProgress == nil {
		return
	}

	state.mu.Lock()
	done := state.resolved
	state.mu.Unlock()

	state.cbMu.Lock()
	defer state.cbMu.Unlock()
	if done < state.lastReported {
		return
	}
	state.lastReported = done
	opts.OnProgress(done, total)
}

// previewWith renders the joined document with the streaming paragraph's
// partial text spliced in. Best effort: concurrent paragraphs may land
// between two previews.
func (s *Scheduler) previewWith(state *runState, idx int, partial string) string {
	state.mu.Lock()
	defer state.mu.Unlock()

	parts := make([]string, 0, len(state.slots))
	for i, slot := range state.slots {
		switch {
		case i == idx:
			parts = append(parts, partial)
		case slot != "":
			parts = append(parts, slot)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *Scheduler) stopRequested(state *runState, opts Options) bool {
	if state.stopped.Load() {
		return true
	}
	if opts.StopCheck != nil && opts.StopCheck() {
		state.stopped.Store(true)
		return true
	}
	return false
}

// finish joins the completed document and clears the checkpoint.
func (s *Scheduler) finish(ctx context.Context, state *runState, opts Options) (string, error) {
	state.mu.Lock()
	joined := strings.Join(state.slots, "\n\n")
	state.mu.Unlock()

	if s.store != nil && opts.JobID != "" {
		if err := s.store.Delete(ctx, opts.JobID); err != nil {
			log.Warn("Job %s: checkpoint cleanup failed: %v", opts.JobID, err)
		}
	}
	return joined, nil
}

// backoffDelay picks the retry delay for a failure kind. Rate limits back off
// hardest, transient network errors less, everything else least.
func backoffDelay(kind translator.Kind, attempt int, unit time.Duration) time.Duration {
	factor := time.Duration(1) << attempt
	switch kind {
	case translator.KindRateLimited:
		return factor * 2 * unit
	case translator.KindNetwork:
		return factor * unit
	default:
		return factor * unit / 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
