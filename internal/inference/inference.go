package inference

import "context"

// Usage holds the token counts reported by a single capability call.
// Counts are zero when the backend does not report usage.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Add accumulates another call's usage into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// Capability defines the interface for the external inference backend.
// Both operations return the raw response text plus the token usage of
// the call so the caller can account for cost explicitly.
type Capability interface {
	// ExtractStructured sends a rendered document image and an extraction
	// prompt to a vision model and returns the raw response text.
	ExtractStructured(ctx context.Context, imagePNG []byte, prompt string) (string, Usage, error)

	// ClassifyText sends a system instruction and a prompt to a text model
	// and returns the raw response text.
	ClassifyText(ctx context.Context, system, prompt string) (string, Usage, error)

	// Close closes the capability and releases resources.
	Close() error
}
