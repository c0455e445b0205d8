package config

// Config holds folio configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Extract  ExtractCfg  `mapstructure:"extract" yaml:"extract"`
	PDF      PDFCfg      `mapstructure:"pdf" yaml:"pdf"`
	Cache    CacheCfg    `mapstructure:"cache" yaml:"cache"`
	Pipeline PipelineCfg `mapstructure:"pipeline" yaml:"pipeline"`
	LogLevel string      `mapstructure:"log_level" yaml:"log_level"`
}

// ExtractCfg configures the vision extraction client.
type ExtractCfg struct {
	Model          string `mapstructure:"model" yaml:"model"`                     // Vision model name
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`               // Optional API base URL override
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`         // Attempts per page, including the first
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // HTTP timeout per request
	MaxTokens      int    `mapstructure:"max_tokens" yaml:"max_tokens"`           // Completion token cap per page
}

// PDFCfg configures page rasterization.
type PDFCfg struct {
	DPI          int `mapstructure:"dpi" yaml:"dpi"`                     // Render resolution
	ImageQuality int `mapstructure:"image_quality" yaml:"image_quality"` // JPEG quality when rendering to JPEG
}

// CacheCfg configures the per-book page cache.
type CacheCfg struct {
	// Dir overrides the default cache directory ({home}/cache).
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// PipelineCfg holds the boundary heuristics' contractual defaults.
type PipelineCfg struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"` // Heading dedup character-overlap ratio
	MaxFragmentLength   int     `mapstructure:"max_fragment_length" yaml:"max_fragment_length"`   // Longest token treated as a cut-off word
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Extract: ExtractCfg{
			Model:          "gpt-4o",
			APIKey:         "${OPENAI_API_KEY}",
			MaxRetries:     3,
			TimeoutSeconds: 120,
			MaxTokens:      8192,
		},
		PDF: PDFCfg{
			DPI:          300,
			ImageQuality: 85,
		},
		Pipeline: PipelineCfg{
			SimilarityThreshold: 0.8,
			MaxFragmentLength:   15,
		},
		LogLevel: "info",
	}
}
