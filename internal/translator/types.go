package translator

import "context"

// Request describes one paragraph translation call.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	Model      string

	// Stream enables incremental delivery. OnChunk receives each raw chunk
	// and the accumulated text so far; it must return quickly.
	Stream  bool
	OnChunk func(chunk, accumulated string)
}

// Translator is the provider call abstraction consumed by the scheduler.
// Failures carry a Kind via *Error so the scheduler can decide retry policy
// without parsing messages.
type Translator interface {
	TranslateParagraph(ctx context.Context, req Request) (string, error)
}
