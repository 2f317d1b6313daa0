package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the quiz solver
type Config struct {
	General     GeneralConfig   `mapstructure:"general"`
	Server      ServerConfig    `mapstructure:"server"`
	Credentials Credentials     `mapstructure:"credentials"`
	LLM         LLMConfig       `mapstructure:"llm"`
	Browser     BrowserConfig   `mapstructure:"browser"`
	Solver      SolverConfig    `mapstructure:"solver"`
	Queue       QueueConfig     `mapstructure:"queue"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig configures the reasoning service.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, mock
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Provider)) {
	case "openai":
		if strings.TrimSpace(l.APIKey) == "" {
			return fmt.Errorf("llm.api_key required for openai provider")
		}
		if strings.TrimSpace(l.Model) == "" {
			return fmt.Errorf("llm.model required")
		}
	case "mock":
	default:
		return fmt.Errorf("llm.provider %q not supported", l.Provider)
	}
	return nil
}

// BrowserConfig configures the headless renderer.
type BrowserConfig struct {
	Type            string        `mapstructure:"type"`
	Headless        bool          `mapstructure:"headless"`
	ExecPath        string        `mapstructure:"exec_path"`
	UserAgent       string        `mapstructure:"user_agent"`
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
}

// Normalize applies defaults for unset browser values.
func (b BrowserConfig) Normalize() BrowserConfig {
	if strings.TrimSpace(b.Type) == "" {
		b.Type = "chromedp"
	}
	if b.NavigateTimeout <= 0 {
		b.NavigateTimeout = 30 * time.Second
	}
	if b.SettleDelay < 0 {
		b.SettleDelay = 0
	}
	return b
}

// SolverConfig tunes the transport used by a chain.
type SolverConfig struct {
	SubmitTimeout      time.Duration `mapstructure:"submit_timeout"`
	DownloadTimeout    time.Duration `mapstructure:"download_timeout"`
	MaxAttachmentChars int           `mapstructure:"max_attachment_chars"`
}

// maxAttachmentChars is the ceiling for the prompt attachment excerpt.
const maxAttachmentChars = 5000

// Normalize applies defaults for unset solver values and caps the
// attachment excerpt at 5000 characters.
func (s SolverConfig) Normalize() SolverConfig {
	if s.SubmitTimeout <= 0 {
		s.SubmitTimeout = 30 * time.Second
	}
	if s.DownloadTimeout <= 0 {
		s.DownloadTimeout = 120 * time.Second
	}
	if s.MaxAttachmentChars <= 0 || s.MaxAttachmentChars > maxAttachmentChars {
		s.MaxAttachmentChars = maxAttachmentChars
	}
	return s
}

// QueueConfig selects how accepted solve requests are executed.
type QueueConfig struct {
	Backend         string `mapstructure:"backend"` // inline, redis
	Stream          string `mapstructure:"stream"`
	CompletedStream string `mapstructure:"completed_stream"`
	Group           string `mapstructure:"group"`
	Concurrency     int    `mapstructure:"concurrency"`
	Backlog         int    `mapstructure:"backlog"` // inline only
}

// Normalize applies defaults for unset queue values.
func (q QueueConfig) Normalize() QueueConfig {
	q.Backend = strings.ToLower(strings.TrimSpace(q.Backend))
	if q.Backend == "" {
		q.Backend = "inline"
	}
	if q.Stream == "" {
		q.Stream = "quiz.solve"
	}
	if q.CompletedStream == "" {
		q.CompletedStream = "quiz.completed"
	}
	if q.Group == "" {
		q.Group = "quiz-workers"
	}
	if q.Concurrency <= 0 {
		q.Concurrency = 4
	}
	if q.Backlog <= 0 {
		q.Backlog = 64
	}
	return q
}

func (q QueueConfig) Validate() error {
	switch q.Backend {
	case "inline", "redis":
		return nil
	default:
		return fmt.Errorf("queue.backend must be inline or redis, got %q", q.Backend)
	}
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns the host:port pair for the redis client.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required")
	}
	return nil
}

// DSN builds a lib/pq connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoadConfig loads config from file and panics on failure.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}

// Load reads the config file (optional) and QUIZCHAIN_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("QUIZCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names used by existing deployments
	_ = v.BindEnv("credentials.email", "QUIZCHAIN_CREDENTIALS_EMAIL", "STUDENT_EMAIL")
	_ = v.BindEnv("credentials.secret", "QUIZCHAIN_CREDENTIALS_SECRET", "STUDENT_SECRET")
	_ = v.BindEnv("llm.api_key", "QUIZCHAIN_LLM_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Browser = cfg.Browser.Normalize()
	cfg.Solver = cfg.Solver.Normalize()
	cfg.Queue = cfg.Queue.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section that has constraints.
func (c *Config) Validate() error {
	if err := c.Credentials.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if c.Queue.Backend == "redis" {
		if err := c.Storage.Redis.Validate(); err != nil {
			return err
		}
	}
	return c.Storage.Postgres.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("browser.type", "chromedp")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.navigate_timeout", 30*time.Second)
	v.SetDefault("browser.settle_delay", 2*time.Second)
	v.SetDefault("solver.submit_timeout", 30*time.Second)
	v.SetDefault("solver.download_timeout", 120*time.Second)
	v.SetDefault("solver.max_attachment_chars", 5000)
	v.SetDefault("queue.backend", "inline")
	v.SetDefault("queue.stream", "quiz.solve")
	v.SetDefault("queue.completed_stream", "quiz.completed")
	v.SetDefault("queue.group", "quiz-workers")
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.backlog", 64)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.postgres.enabled", false)
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "quizchain")
}
