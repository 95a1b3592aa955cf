package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/llm"
	"github.com/Neruzzz/toolchat/internal/sandbox"
)

type Config struct {
	Environment string                `mapstructure:"environment"`
	LogLevel    string                `mapstructure:"log_level"`
	LogFormat   string                `mapstructure:"log_format"`
	Model       llm.Config            `mapstructure:"model"`
	Assistant   AssistantConfig       `mapstructure:"assistant"`
	Telemetry   httpx.TelemetryConfig `mapstructure:"telemetry"`
	People      PeopleConfig          `mapstructure:"people"`
	RAG         RAGConfig             `mapstructure:"rag"`
	Search      SearchConfig          `mapstructure:"search"`
	Finance     FinanceConfig         `mapstructure:"finance"`
}

type AssistantConfig struct {
	MaxToolCalls int    `mapstructure:"max_tool_calls"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type PeopleConfig struct {
	DBPath       string `mapstructure:"db_path"`
	Addr         string `mapstructure:"addr"`
	ServerURL    string `mapstructure:"server_url"`
	MaxToolCalls int    `mapstructure:"max_tool_calls"`
}

type RAGConfig struct {
	Collection   string `mapstructure:"collection"`
	Backend      string `mapstructure:"backend"`
	LocalPath    string `mapstructure:"local_path"`
	QdrantURL    string `mapstructure:"qdrant_url"`
	QdrantAPIKey string `mapstructure:"qdrant_api_key"`
	Embedder     string `mapstructure:"embedder"`
	CacheDir     string `mapstructure:"cache_dir"`
	Limit        int    `mapstructure:"limit"`
	Transport    string `mapstructure:"transport"`
	Addr         string `mapstructure:"addr"`
}

type SearchConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Num      int           `mapstructure:"num"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type FinanceConfig struct {
	ArtifactsDir  string         `mapstructure:"artifacts_dir"`
	Transport     string         `mapstructure:"transport"`
	Addr          string         `mapstructure:"addr"`
	WebAddr       string         `mapstructure:"web_addr"`
	HolidaysURL   string         `mapstructure:"holidays_url"`
	ChartURL      string         `mapstructure:"chart_url"`
	MongoURI      string         `mapstructure:"mongo_uri"`
	MongoDatabase string         `mapstructure:"mongo_database"`
	Sandbox       sandbox.Config `mapstructure:"sandbox"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("model.provider", "gemini")
	v.SetDefault("model.model", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.temperature", 0.1)

	v.SetDefault("assistant.max_tool_calls", 3)
	v.SetDefault("assistant.system_prompt", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "toolchat")
	v.SetDefault("telemetry.interval", "10s")

	v.SetDefault("people.db_path", "data.db")
	v.SetDefault("people.addr", "127.0.0.1:8000")
	v.SetDefault("people.server_url", "http://127.0.0.1:8000")
	v.SetDefault("people.max_tool_calls", 10)

	v.SetDefault("rag.collection", "ml_faq_collection")
	v.SetDefault("rag.backend", "local")
	v.SetDefault("rag.local_path", "./qdrant_db_new")
	v.SetDefault("rag.qdrant_url", "")
	v.SetDefault("rag.qdrant_api_key", "")
	v.SetDefault("rag.embedder", "hash")
	v.SetDefault("rag.cache_dir", "")
	v.SetDefault("rag.limit", 5)
	v.SetDefault("rag.transport", "stdio")
	v.SetDefault("rag.addr", "127.0.0.1:8001")

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.endpoint", "https://serpapi.com/search.json")
	v.SetDefault("search.num", 5)
	v.SetDefault("search.timeout", "15s")

	v.SetDefault("finance.artifacts_dir", ".")
	v.SetDefault("finance.transport", "stdio")
	v.SetDefault("finance.addr", "127.0.0.1:8002")
	v.SetDefault("finance.web_addr", "127.0.0.1:8501")
	v.SetDefault("finance.holidays_url", "https://www.officeholidays.com/ics-clean/usa")
	v.SetDefault("finance.chart_url", "https://query1.finance.yahoo.com/v8/finance/chart/")
	v.SetDefault("finance.mongo_uri", "")
	v.SetDefault("finance.mongo_database", "toolchat")
	v.SetDefault("finance.sandbox.mode", sandbox.ModeDisabled)
	v.SetDefault("finance.sandbox.interpreter", "python3")
	v.SetDefault("finance.sandbox.timeout", "60s")
	v.SetDefault("finance.sandbox.max_output_bytes", 64<<10)
	v.SetDefault("finance.sandbox.cpu_seconds", 60)
	v.SetDefault("finance.sandbox.memory_mb", 2048)
	v.SetDefault("finance.sandbox.file_size_mb", 50)
	v.SetDefault("finance.sandbox.docker_image", "python:3.12-slim")
	v.SetDefault("finance.sandbox.docker_network", "bridge")
	v.SetDefault("finance.sandbox.docker_cpus", "1")
	v.SetDefault("finance.sandbox.keep_scratch", false)
	v.SetDefault("finance.sandbox.confine", sandbox.ConfineBwrap)
	v.SetDefault("finance.sandbox.allow_unconfined", false)
	v.SetDefault("finance.sandbox.pids_limit", 128)
}

// wellKnownEnv maps config keys to conventional variable names that are
// read alongside the TOOLCHAT_ ones.
var wellKnownEnv = map[string][]string{
	"search.api_key":       {"SERPAPI_API_KEY"},
	"rag.qdrant_url":       {"QDRANT_URL"},
	"rag.qdrant_api_key":   {"QDRANT_API_KEY"},
	"finance.mongo_uri":    {"MONGODB_URI"},
	"model.provider":       {"MODEL_PROVIDER"},
	"log_level":            {"LOG_LEVEL"},
	"finance.sandbox.mode": {"SANDBOX_MODE"},
}

// Load reads .env, then the optional YAML file at path (or ./toolchat.yaml
// when path is empty), then TOOLCHAT_* and the well-known variables.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not load .env", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TOOLCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range wellKnownEnv {
		envKey := "TOOLCHAT_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(append([]string{key, envKey}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("toolchat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Assistant.MaxToolCalls < 1 {
		return fmt.Errorf("assistant.max_tool_calls must be at least 1, got %d", c.Assistant.MaxToolCalls)
	}
	if c.People.MaxToolCalls < 1 {
		return fmt.Errorf("people.max_tool_calls must be at least 1, got %d", c.People.MaxToolCalls)
	}
	if strings.TrimSpace(c.People.DBPath) == "" {
		return fmt.Errorf("people.db_path is required")
	}
	switch c.RAG.Backend {
	case "local", "qdrant":
	default:
		return fmt.Errorf("rag.backend must be local or qdrant, got %q", c.RAG.Backend)
	}
	if c.RAG.Backend == "qdrant" && strings.TrimSpace(c.RAG.QdrantURL) == "" {
		return fmt.Errorf("rag.qdrant_url is required for the qdrant backend")
	}
	for name, transport := range map[string]string{"rag.transport": c.RAG.Transport, "finance.transport": c.Finance.Transport} {
		if transport != "stdio" && transport != "http" {
			return fmt.Errorf("%s must be stdio or http, got %q", name, transport)
		}
	}
	switch c.Finance.Sandbox.Mode {
	case sandbox.ModeDisabled, sandbox.ModeProcess, sandbox.ModeDocker:
	default:
		return fmt.Errorf("finance.sandbox.mode must be disabled, process or docker, got %q", c.Finance.Sandbox.Mode)
	}
	if err := c.Finance.Sandbox.Validate(); err != nil {
		return fmt.Errorf("finance.sandbox: %w", err)
	}
	return nil
}

// SetupLogging installs the default slog logger. MCP stdio servers pass
// os.Stderr so that stdout stays a clean protocol stream.
func (c *Config) SetupLogging(w io.Writer) *slog.Logger {
	logger := NewLogger(c.LogLevel, c.LogFormat, w)
	slog.SetDefault(logger)
	return logger
}

func NewLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
