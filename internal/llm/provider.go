package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/v2/option"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

// Config selects and configures a hosted model.
type Config struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
}

var ErrMissingAPIKey = errors.New("missing API key")

// New builds the model named by cfg.Provider. Missing credentials are
// reported as ReasonModelInit errors.
func New(ctx context.Context, cfg Config) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini", "google":
		key := cfg.APIKey
		if key == "" {
			key = GeminiAPIKey()
		}
		if key == "" {
			return nil, errorsx.Wrap(fmt.Errorf("%w: GOOGLE_API_KEY not found in environment variables", ErrMissingAPIKey), errorsx.ReasonModelInit)
		}
		m, err := NewGemini(ctx, key, cfg.Model)
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonModelInit)
		}
		return m, nil

	case "openai":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, errorsx.Wrap(fmt.Errorf("%w: OPENAI_API_KEY not found in environment variables", ErrMissingAPIKey), errorsx.ReasonModelInit)
		}
		opts := []openaiopt.RequestOption{openaiopt.WithAPIKey(key)}
		if cfg.BaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
		}
		return NewOpenAI(cfg.Model, opts...), nil

	case "anthropic", "claude":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" {
			return nil, errorsx.Wrap(fmt.Errorf("%w: ANTHROPIC_API_KEY not found in environment variables", ErrMissingAPIKey), errorsx.ReasonModelInit)
		}
		opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(key)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
		}
		return NewAnthropic(cfg.Model, opts...), nil

	case "dummy", "echo":
		return NewDummy(""), nil
	}
	return nil, errorsx.Wrap(fmt.Errorf("unknown model provider %q", cfg.Provider), errorsx.ReasonModelInit)
}

// Close releases provider resources when the model holds any.
func Close(m Model) error {
	if c, ok := m.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
