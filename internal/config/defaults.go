package config

// Config is the root configuration for a formscan run.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Render    RenderConfig    `mapstructure:"render" yaml:"render"`
	Enhance   EnhanceConfig   `mapstructure:"enhance" yaml:"enhance"`
	Vision    VisionConfig    `mapstructure:"vision" yaml:"vision"`
	Reconcile ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`
	Source    SourceConfig    `mapstructure:"source" yaml:"source"`
}

// ProvidersConfig selects and configures vision-capable inference clients.
type ProvidersConfig struct {
	Default string                    `mapstructure:"default" yaml:"default"`
	Clients map[string]ProviderConfig `mapstructure:"clients" yaml:"clients"`
}

// ProviderConfig configures one inference client.
type ProviderConfig struct {
	Type           string  `mapstructure:"type" yaml:"type"` // "openrouter" or "openai"
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"` // ${ENV_VAR} syntax supported
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	RateLimit      int     `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
}

// RenderConfig controls PDF page rasterization.
type RenderConfig struct {
	DPI        int `mapstructure:"dpi" yaml:"dpi"`
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"` // 0 = NumCPU
}

// EnhanceConfig holds the image transform tunables. Thresholds are 0-255
// grayscale levels; contrast values are fractional changes as bild expects.
type EnhanceConfig struct {
	CheckboxThreshold uint8   `mapstructure:"checkbox_threshold" yaml:"checkbox_threshold"`
	RadioThreshold    uint8   `mapstructure:"radio_threshold" yaml:"radio_threshold"`
	Contrast          float64 `mapstructure:"contrast" yaml:"contrast"`
	RadioContrast     float64 `mapstructure:"radio_contrast" yaml:"radio_contrast"`
	DilateRadius      float64 `mapstructure:"dilate_radius" yaml:"dilate_radius"`
	EdgeBlend         float64 `mapstructure:"edge_blend" yaml:"edge_blend"` // 0-1 edge layer opacity
}

// VisionConfig controls the vision-based structured extractor.
type VisionConfig struct {
	Workers  int      `mapstructure:"workers" yaml:"workers"` // concurrent in-flight inference calls
	Variants []string `mapstructure:"variants" yaml:"variants"`
	Strategy string   `mapstructure:"strategy" yaml:"strategy"`
}

// ReconcileConfig exposes the reconciliation constants as tunables. The
// values below are empirical; validate against a labeled corpus before
// trusting them in a new form family.
type ReconcileConfig struct {
	AgreementBoost  float64 `mapstructure:"agreement_boost" yaml:"agreement_boost"`
	ConflictPenalty float64 `mapstructure:"conflict_penalty" yaml:"conflict_penalty"`
	FormBase        float64 `mapstructure:"form_base" yaml:"form_base"`
	VisionBase      float64 `mapstructure:"vision_base" yaml:"vision_base"`
	ReviewThreshold float64 `mapstructure:"review_threshold" yaml:"review_threshold"`
}

// SourceConfig configures the upstream document store collaborator.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Default: "openrouter",
			Clients: map[string]ProviderConfig{
				"openrouter": {
					Type:           "openrouter",
					Model:          "anthropic/claude-sonnet-4.5",
					APIKey:         "${OPENROUTER_API_KEY}",
					RateLimit:      60,
					TimeoutSeconds: 120,
					MaxRetries:     3,
					Temperature:    0.1,
					MaxTokens:      4096,
					Enabled:        true,
				},
				"openai": {
					Type:           "openai",
					Model:          "gpt-4o",
					APIKey:         "${OPENAI_API_KEY}",
					RateLimit:      60,
					TimeoutSeconds: 120,
					MaxRetries:     3,
					Temperature:    0.1,
					MaxTokens:      4096,
					Enabled:        false,
				},
			},
		},
		Render: RenderConfig{
			DPI: 300,
		},
		Enhance: EnhanceConfig{
			CheckboxThreshold: 180,
			RadioThreshold:    200,
			Contrast:          1.0, // 2x perceived contrast
			RadioContrast:     2.0, // 3x, radio fills are lighter than tick marks
			DilateRadius:      1,
			EdgeBlend:         0.3,
		},
		Vision: VisionConfig{
			Workers: 3,
			Variants: []string{
				"original",
				"binarized-checkbox",
				"binarized-radio",
				"contrast",
			},
			Strategy: "questionnaire/v2",
		},
		Reconcile: ReconcileConfig{
			AgreementBoost:  0.1,
			ConflictPenalty: 0.1,
			FormBase:        0.6,
			VisionBase:      0.4,
			ReviewThreshold: 0.7,
		},
		Source: SourceConfig{
			BaseURL:        "",
			APIKey:         "${DOCSTORE_API_KEY}",
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
	}
}
