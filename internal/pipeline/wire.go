package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/enhance"
	"github.com/formscan/formscan/internal/formfields"
	"github.com/formscan/formscan/internal/prompts"
	"github.com/formscan/formscan/internal/providers"
	"github.com/formscan/formscan/internal/reconcile"
	"github.com/formscan/formscan/internal/render"
	"github.com/formscan/formscan/internal/types"
	"github.com/formscan/formscan/internal/vision"
)

// FromConfig assembles a ready-to-run pipeline from configuration.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, model, timeout, err := buildClient(cfg.Providers)
	if err != nil {
		return nil, err
	}

	strategy, err := prompts.Get(cfg.Vision.Strategy)
	if err != nil {
		return nil, err
	}

	variants := make([]types.RenderingVariant, 0, len(cfg.Vision.Variants))
	for _, v := range cfg.Vision.Variants {
		variants = append(variants, types.RenderingVariant(v))
	}

	return New(Options{
		Form:     formfields.New(logger),
		Renderer: render.New(cfg.Render.DPI, cfg.Render.MaxWorkers, logger),
		Enhancer: enhance.New(cfg.Enhance, logger),
		Vision: vision.New(vision.Options{
			Client:   client,
			Strategy: strategy,
			Workers:  cfg.Vision.Workers,
			Model:    model,
			Timeout:  timeout,
			Logger:   logger,
		}),
		Engine:   reconcile.New(cfg.Reconcile, logger),
		Variants: variants,
		Logger:   logger,
	}), nil
}

// buildClient instantiates the default enabled provider client.
func buildClient(cfg config.ProvidersConfig) (providers.LLMClient, string, time.Duration, error) {
	pc, ok := cfg.Clients[cfg.Default]
	if !ok {
		return nil, "", 0, fmt.Errorf("default provider %q not configured", cfg.Default)
	}
	if !pc.Enabled {
		return nil, "", 0, fmt.Errorf("default provider %q is disabled", cfg.Default)
	}
	timeout := time.Duration(pc.TimeoutSeconds) * time.Second
	apiKey := config.ResolveEnvVars(pc.APIKey)

	switch pc.Type {
	case providers.OpenRouterName:
		return providers.NewOpenRouterClient(providers.OpenRouterConfig{
			APIKey:       apiKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.Model,
			Timeout:      timeout,
			RPM:          pc.RateLimit,
			MaxRetries:   pc.MaxRetries,
		}), pc.Model, timeout, nil
	case providers.OpenAIName:
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:       apiKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.Model,
			Timeout:      timeout,
			RPM:          pc.RateLimit,
			MaxRetries:   pc.MaxRetries,
		}), pc.Model, timeout, nil
	default:
		return nil, "", 0, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}
