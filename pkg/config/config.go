package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		Model       string        `yaml:"model"`
		APIKey      string        `yaml:"api_key"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Embedding struct {
		Enabled  bool   `yaml:"enabled"`
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"embedding"`

	Firecrawl struct {
		BaseURL       string        `yaml:"base_url"`
		APIKey        string        `yaml:"api_key"`
		MapLimit      int           `yaml:"map_limit"`
		MapTimeout    time.Duration `yaml:"map_timeout"`
		ScrapeTimeout time.Duration `yaml:"scrape_timeout"`
		RateLimit     float64       `yaml:"rate_limit"`
		MaxRetries    int           `yaml:"max_retries"`
	} `yaml:"firecrawl"`

	Scraper struct {
		Provider          string        `yaml:"provider"`
		RateLimit         float64       `yaml:"rate_limit"`
		Timeout           time.Duration `yaml:"timeout"`
		UserAgent         string        `yaml:"user_agent"`
		IgnorePatterns    []string      `yaml:"ignore_patterns"`
		AllowedExtensions []string      `yaml:"allowed_extensions"`
	} `yaml:"scraper"`

	LinkedIn struct {
		BaseURL    string        `yaml:"base_url"`
		APIKey     string        `yaml:"api_key"`
		Premium    bool          `yaml:"premium"`
		MaxRetries int           `yaml:"max_retries"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"linkedin"`

	Pipeline struct {
		MaxURLs     int    `yaml:"max_urls"`
		Concurrency int    `yaml:"concurrency"`
		Objective   string `yaml:"objective"`
	} `yaml:"pipeline"`

	Processor struct {
		ChunkSize       int  `yaml:"chunk_size"`
		ChunkOverlap    int  `yaml:"chunk_overlap"`
		RemoveStopwords bool `yaml:"remove_stopwords"`
	} `yaml:"processor"`

	Database struct {
		URL           string `yaml:"url"`
		AnalysesTable string `yaml:"analyses_table"`
		ChunksTable   string `yaml:"chunks_table"`
		VectorDim     int    `yaml:"vector_dim"`
		BatchSize     int    `yaml:"batch_size"`
	} `yaml:"database"`

	Storage struct {
		Backend     string `yaml:"backend"`
		OutputDir   string `yaml:"output_dir"`
		PrettyPrint bool   `yaml:"pretty_print"`
		S3          struct {
			Bucket          string `yaml:"bucket"`
			Region          string `yaml:"region"`
			Endpoint        string `yaml:"endpoint"`
			Prefix          string `yaml:"prefix"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			UsePathStyle    bool   `yaml:"use_path_style"`
		} `yaml:"s3"`
	} `yaml:"storage"`

	Server struct {
		Addr       string `yaml:"addr"`
		JobWorkers int    `yaml:"job_workers"`
		JobRetries int    `yaml:"job_retries"`
		QueueSize  int    `yaml:"queue_size"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/bizintel/config.yaml"),
			"/etc/bizintel/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := newConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "error reading config file")
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, eris.Wrap(err, "error parsing config file")
		}
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	config := newConfig()
	applyDefaults(config)
	return config
}

// newConfig seeds the booleans that default to true; zero values cannot express them.
func newConfig() *Config {
	config := &Config{}
	config.LinkedIn.Premium = true
	config.Storage.PrettyPrint = true
	return config
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "openai":
			config.LLM.Model = "gpt-4o-mini"
		case "anthropic":
			config.LLM.Model = "claude-3-5-haiku-latest"
		default:
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 30 * time.Second
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "ollama"
	}
	if config.Embedding.Model == "" && config.Embedding.Provider == "ollama" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == "ollama" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}

	if config.Firecrawl.BaseURL == "" {
		config.Firecrawl.BaseURL = "https://api.firecrawl.dev/v2"
	}
	if config.Firecrawl.MapLimit == 0 {
		config.Firecrawl.MapLimit = 50
	}
	if config.Firecrawl.MapTimeout == 0 {
		config.Firecrawl.MapTimeout = 30 * time.Second
	}
	if config.Firecrawl.ScrapeTimeout == 0 {
		config.Firecrawl.ScrapeTimeout = 35 * time.Second
	}
	if config.Firecrawl.RateLimit == 0 {
		config.Firecrawl.RateLimit = 5
	}
	if config.Firecrawl.MaxRetries == 0 {
		config.Firecrawl.MaxRetries = 3
	}

	if config.Scraper.Provider == "" {
		config.Scraper.Provider = "firecrawl"
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 30 * time.Second
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.LinkedIn.BaseURL == "" {
		config.LinkedIn.BaseURL = "https://api.scrapingdog.com/linkedin/"
	}
	if config.LinkedIn.MaxRetries == 0 {
		config.LinkedIn.MaxRetries = 3
	}
	if config.LinkedIn.Timeout == 0 {
		config.LinkedIn.Timeout = 30 * time.Second
	}

	if config.Pipeline.MaxURLs == 0 {
		config.Pipeline.MaxURLs = 7
	}
	if config.Pipeline.Concurrency == 0 {
		config.Pipeline.Concurrency = 3
	}
	if config.Pipeline.Objective == "" {
		config.Pipeline.Objective = "business intelligence gathering"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Database.AnalysesTable == "" {
		config.Database.AnalysesTable = "analyses"
	}
	if config.Database.ChunksTable == "" {
		config.Database.ChunksTable = "page_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Storage.Backend == "" {
		config.Storage.Backend = "file"
	}
	if config.Storage.OutputDir == "" {
		config.Storage.OutputDir = "output"
	}
	if config.Storage.S3.Prefix == "" {
		config.Storage.S3.Prefix = "analyses"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8000"
	}
	if config.Server.JobWorkers == 0 {
		config.Server.JobWorkers = 2
	}
	if config.Server.JobRetries == 0 {
		config.Server.JobRetries = 3
	}
	if config.Server.QueueSize == 0 {
		config.Server.QueueSize = 100
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "json"
	}
}

func mergeWithEnv(config *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&config.LLM.Provider, "LLM_PROVIDER")
	setString(&config.LLM.Model, "LLM_MODEL")
	switch config.LLM.Provider {
	case "openai":
		setString(&config.LLM.APIKey, "OPENAI_API_KEY")
	case "anthropic":
		setString(&config.LLM.APIKey, "ANTHROPIC_API_KEY")
	default:
		setString(&config.LLM.BaseURL, "OLLAMA_BASE_URL")
	}
	if config.Embedding.Provider == "openai" {
		setString(&config.Embedding.BaseURL, "OPENAI_BASE_URL")
	} else {
		setString(&config.Embedding.BaseURL, "OLLAMA_BASE_URL")
	}

	setString(&config.Firecrawl.APIKey, "FIRECRAWL_API_KEY")
	setString(&config.Scraper.Provider, "SCRAPER_PROVIDER")
	setString(&config.LinkedIn.APIKey, "SCRAPINGDOG_API_KEY")
	setString(&config.Database.URL, "DATABASE_URL")

	setString(&config.Storage.Backend, "STORAGE_BACKEND")
	setString(&config.Storage.S3.Bucket, "S3_BUCKET")
	setString(&config.Storage.S3.Region, "S3_REGION")
	setString(&config.Storage.S3.Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&config.Storage.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
	setString(&config.Log.Level, "LOG_LEVEL")
}
