package llm

import (
	"context"
	"strings"
	"time"

	"github.com/aktagon/llmkit/anthropic"
	llmkit "github.com/aktagon/llmkit/anthropic/types"
	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/bizintel/internal/types"
)

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// GeneratorConfig selects and configures a text-generation backend.
type GeneratorConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func (c *GeneratorConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.Model == "" {
		switch c.Provider {
		case ProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case ProviderAnthropic:
			c.Model = "claude-3-5-haiku-latest"
		default:
			c.Model = "mistral"
		}
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Provider == ProviderOllama && c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
}

// NewGenerator builds the configured backend. Hosted providers without an API
// key return types.ErrMissingCredential.
func NewGenerator(config GeneratorConfig) (types.Generator, error) {
	config.applyDefaults()

	switch strings.ToLower(config.Provider) {
	case ProviderOllama:
		model, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, eris.Wrap(err, "failed to initialize ollama")
		}
		return NewEngine(model, config), nil

	case ProviderOpenAI:
		if strings.TrimSpace(config.APIKey) == "" {
			return nil, eris.Wrap(types.ErrMissingCredential, "OpenAI API key required for AI-powered URL scoring")
		}
		opts := []openai.Option{openai.WithToken(config.APIKey), openai.WithModel(config.Model)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, eris.Wrap(err, "failed to initialize openai")
		}
		return NewEngine(model, config), nil

	case ProviderAnthropic:
		if strings.TrimSpace(config.APIKey) == "" {
			return nil, eris.Wrap(types.ErrMissingCredential, "Anthropic API key required for AI-powered URL scoring")
		}
		return &AnthropicGenerator{config: config}, nil
	}

	return nil, eris.Errorf("unknown llm provider %q", config.Provider)
}

// Engine generates text through a langchaingo model.
type Engine struct {
	config GeneratorConfig
	llm    llms.Model
}

func NewEngine(model llms.Model, config GeneratorConfig) *Engine {
	config.applyDefaults()
	return &Engine{config: config, llm: model}
}

func (e *Engine) Generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := e.llm.GenerateContent(ctx, content,
		llms.WithTemperature(e.config.Temperature),
		llms.WithMaxTokens(e.config.MaxTokens),
	)
	if err != nil {
		return "", eris.Wrap(err, "generation failed")
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", eris.Wrap(ErrInvalidResponse, "no choices in response")
	}
	return response.Choices[0].Content, nil
}

// AnthropicGenerator calls the Anthropic messages API through llmkit.
type AnthropicGenerator struct {
	config GeneratorConfig
}

type generation struct {
	text string
	err  error
}

func (g *AnthropicGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	settings := llmkit.RequestSettings{
		Model:       g.config.Model,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	// llmkit has no context support, so the call is raced against ctx.
	done := make(chan generation, 1)
	go func() {
		response, err := anthropic.PromptWithSettings(system, prompt, "", g.config.APIKey, settings)
		if err != nil {
			done <- generation{err: eris.Wrap(err, "anthropic request failed")}
			return
		}
		if len(response.Content) == 0 {
			done <- generation{err: eris.Wrap(ErrInvalidResponse, "no content in anthropic response")}
			return
		}
		done <- generation{text: response.Content[0].Text}
	}()

	select {
	case <-ctx.Done():
		return "", eris.Wrap(ctx.Err(), "anthropic request timed out")
	case res := <-done:
		return res.text, res.err
	}
}
