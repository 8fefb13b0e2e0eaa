package llm

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/bizintel/internal/types"
)

type EmbedderConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// NewEmbedderWithConfig returns an embedding backend for the page index.
func NewEmbedderWithConfig(config EmbedderConfig) (types.Embedder, error) {
	switch strings.ToLower(config.Provider) {
	case "", ProviderOllama:
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		emb, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, eris.Wrap(err, "failed to initialize embedder")
		}
		return emb, nil

	case ProviderOpenAI:
		if strings.TrimSpace(config.APIKey) == "" {
			return nil, eris.Wrap(types.ErrMissingCredential, "OpenAI API key required for embeddings")
		}
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		opts := []openai.Option{openai.WithToken(config.APIKey), openai.WithEmbeddingModel(config.Model)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		emb, err := openai.New(opts...)
		if err != nil {
			return nil, eris.Wrap(err, "failed to initialize embedder")
		}
		return emb, nil
	}

	return nil, eris.Errorf("unknown embedding provider %q", config.Provider)
}
