package llm

import (
	"context"
)

// LLMClient is the inference collaborator: candidate extraction and
// relation proposal both go through plain-text prompts.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient is the embedding gateway. The engine only consumes the
// returned vector for cosine similarity.
type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
