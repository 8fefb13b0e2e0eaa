package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, message string) {
		errors = append(errors, ValidationError{Field: field, Message: message})
	}

	// LLM
	if !oneOf(c.LLM.Provider, "ollama", "openai", "anthropic") {
		add("llm.provider", "provider must be one of ollama, openai, anthropic")
	}
	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		add("llm.base_url", "Ollama base URL is required")
	}
	if c.LLM.BaseURL != "" && !isHTTPURL(c.LLM.BaseURL) {
		add("llm.base_url", "invalid base URL")
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		add("llm.max_tokens", "max_tokens must be between 1 and 4096")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", "temperature must be between 0 and 2")
	}

	// Providers
	if !oneOf(c.Scraper.Provider, "firecrawl", "direct") {
		add("scraper.provider", "provider must be firecrawl or direct")
	}
	if c.Scraper.RateLimit <= 0 {
		add("scraper.rate_limit", "rate_limit must be positive")
	}
	for _, ext := range c.Scraper.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			add("scraper.allowed_extensions", fmt.Sprintf("invalid extension format: %s", ext))
		}
	}
	if c.Firecrawl.RateLimit <= 0 {
		add("firecrawl.rate_limit", "rate_limit must be positive")
	}
	if !isHTTPURL(c.Firecrawl.BaseURL) {
		add("firecrawl.base_url", "invalid Firecrawl base URL")
	}
	if !isHTTPURL(c.LinkedIn.BaseURL) {
		add("linkedin.base_url", "invalid ScrapingDog base URL")
	}

	// Pipeline
	if c.Pipeline.MaxURLs < 1 {
		add("pipeline.max_urls", "max_urls must be at least 1")
	}
	if c.Pipeline.Concurrency < 1 {
		add("pipeline.concurrency", "concurrency must be at least 1")
	}

	// Processor
	if c.Processor.ChunkSize < 1 {
		add("processor.chunk_size", "chunk_size must be positive")
	}
	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		add("processor.chunk_overlap", "chunk_overlap must be non-negative and less than chunk_size")
	}

	// Database
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			add("database.url", "invalid database URL")
		}
	}
	if c.Database.VectorDim < 1 {
		add("database.vector_dim", "vector_dim must be positive")
	}
	if c.Database.BatchSize < 1 {
		add("database.batch_size", "batch_size must be positive")
	}
	if c.Embedding.Enabled && c.Database.URL == "" {
		add("embedding.enabled", "the page index requires database.url")
	}

	// Storage
	switch c.Storage.Backend {
	case "file":
	case "postgres":
		if c.Database.URL == "" {
			add("database.url", "database URL is required for the postgres backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			add("storage.s3.bucket", "bucket is required for the s3 backend")
		}
		if c.Storage.S3.Region == "" {
			add("storage.s3.region", "region is required for the s3 backend")
		}
	default:
		add("storage.backend", "backend must be one of file, postgres, s3")
	}

	// Server
	if c.Server.JobWorkers < 1 {
		add("server.job_workers", "job_workers must be at least 1")
	}
	if c.Server.JobRetries < 0 {
		add("server.job_retries", "job_retries must be non-negative")
	}

	if !oneOf(c.Log.Format, "json", "console") {
		add("log.format", "format must be json or console")
	}

	return errors
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
