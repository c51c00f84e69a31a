// Package config loads the platform's runtime configuration. Recognized
// keys are environment variables (spec §6); an optional YAML file can seed
// the same fields for local development, with $VAR expansion applied
// before parsing so the file and the environment share one substitution
// model.
package config

import (
	"os"
	"strconv"
	"time"
)

// RedisConfig describes the Redis endpoint backing the Stream Client (C1)
// and the REST Data Plane's read-through cache (C2).
type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`

	QueueToSecretary string `yaml:"queue_to_secretary"`
	QueueToTelegram  string `yaml:"queue_to_telegram"`
}

// Addr returns the host:port pair go-redis expects.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}

// ServicesConfig holds base URLs of the external services this core
// consumes (spec §1 Out-of-scope, §6 REST surface).
type ServicesConfig struct {
	RESTServiceURL string `yaml:"rest_service_url"`
	RAGServiceURL  string `yaml:"rag_service_url"`
}

// ProvidersConfig holds third-party API credentials.
type ProvidersConfig struct {
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	TavilyAPIKey  string `yaml:"tavily_api_key"`
}

// ObservabilityConfig configures C9.
type ObservabilityConfig struct {
	LogLevel     string `yaml:"log_level"`
	GrafanaURL   string `yaml:"grafana_url"`
	PrometheusURL string `yaml:"prometheus_url"`
	LokiURL      string `yaml:"loki_url"`
}

// HTTPClientConfig configures C2's per-call policy.
type HTTPClientConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	OverallTimeout time.Duration `yaml:"overall_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	FailMax        int           `yaml:"fail_max"`
	ResetTimeout   time.Duration `yaml:"reset_timeout"`
}

// QueueConfig configures C1's delivery and retry semantics.
type QueueConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryWindow time.Duration `yaml:"retry_window"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
	ConsumerName string       `yaml:"consumer_name"`
}

// SchedulerConfig configures C3.
type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	OneTimeGrace      time.Duration `yaml:"one_time_grace"`
	RecurringGrace    time.Duration `yaml:"recurring_grace"`
}

// AgentFactoryConfig configures C4.
type AgentFactoryConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// GraphConfig configures C6's thresholds.
type GraphConfig struct {
	HistoryLimit         int           `yaml:"history_limit"`
	MemoryLimit          int           `yaml:"memory_limit"`
	MemoryThreshold      float64       `yaml:"memory_threshold"`
	SummaryThreshold     float64       `yaml:"summary_threshold"`
	MessagesToKeepTail   int           `yaml:"messages_to_keep_tail"`
	ModelStepTimeout     time.Duration `yaml:"model_step_timeout"`
	WallClockMultiplier  int           `yaml:"wall_clock_multiplier"`
}

// MemoryExtractorConfig configures C8.
type MemoryExtractorConfig struct {
	Interval       time.Duration `yaml:"interval"`
	MinMessages    int           `yaml:"min_messages"`
	ConversationCap int          `yaml:"conversation_cap"`
	DedupThreshold float64       `yaml:"dedup_threshold"`
}

// LocalDBConfig configures the Postgres connection this service owns
// itself, for the append-only QueueMessageLog/JobExecution tables —
// distinct from the REST Data Plane's own database. An empty DSN
// disables local logging entirely (internal/storage and internal/jobs
// become no-ops).
type LocalDBConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// Config aggregates every ambient and domain setting the three service
// binaries share.
type Config struct {
	Redis     RedisConfig           `yaml:"redis"`
	Services  ServicesConfig        `yaml:"services"`
	Providers ProvidersConfig       `yaml:"providers"`
	Observability ObservabilityConfig `yaml:"observability"`
	HTTPClient HTTPClientConfig     `yaml:"http_client"`
	Queue     QueueConfig           `yaml:"queue"`
	Scheduler SchedulerConfig       `yaml:"scheduler"`
	AgentFactory AgentFactoryConfig `yaml:"agent_factory"`
	Graph     GraphConfig           `yaml:"graph"`
	MemoryExtractor MemoryExtractorConfig `yaml:"memory_extractor"`
	LocalDB   LocalDBConfig         `yaml:"local_db"`
}

// Default returns the baseline configuration before any overlay is
// applied, matching spec §6's stated defaults.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Host:             "localhost",
			Port:             6379,
			DB:               0,
			QueueToSecretary: "queue:to_secretary",
			QueueToTelegram:  "queue:to_telegram",
		},
		Observability: ObservabilityConfig{LogLevel: "info"},
		HTTPClient: HTTPClientConfig{
			ConnectTimeout: 5 * time.Second,
			OverallTimeout: 30 * time.Second,
			MaxRetries:     3,
			FailMax:        5,
			ResetTimeout:   30 * time.Second,
		},
		Queue: QueueConfig{
			MaxRetries:   3,
			RetryWindow:  time.Hour,
			BlockTimeout: 5 * time.Second,
		},
		Scheduler: SchedulerConfig{
			ReconcileInterval: time.Minute,
			OneTimeGrace:      5 * time.Minute,
			RecurringGrace:    time.Minute,
		},
		AgentFactory: AgentFactoryConfig{RefreshInterval: 10 * time.Minute},
		Graph: GraphConfig{
			HistoryLimit:        50,
			MemoryLimit:         5,
			MemoryThreshold:     0.6,
			SummaryThreshold:    0.6,
			MessagesToKeepTail:  5,
			ModelStepTimeout:    60 * time.Second,
			WallClockMultiplier: 3,
		},
		MemoryExtractor: MemoryExtractorConfig{
			Interval:        24 * time.Hour,
			MinMessages:     2,
			ConversationCap: 50,
			DedupThreshold:  0.85,
		},
		LocalDB: LocalDBConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
	}
}

// Load builds configuration by starting from Default(), optionally
// overlaying a YAML file (with $VAR expansion, per the teacher's
// internal/config/loader.go pattern), then applying the canonical
// environment variables from spec §6 on top — the environment always
// wins, matching a twelve-factor deployment.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()
	if yamlPath != "" {
		if err := overlayYAML(cfg, yamlPath); err != nil {
			return nil, err
		}
	}
	overlayEnv(cfg)
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v, ok := envInt("REDIS_PORT"); ok {
		cfg.Redis.Port = v
	}
	if v, ok := envInt("REDIS_DB"); ok {
		cfg.Redis.DB = v
	}
	if v := os.Getenv("REDIS_QUEUE_TO_SECRETARY"); v != "" {
		cfg.Redis.QueueToSecretary = v
	}
	if v := os.Getenv("REDIS_QUEUE_TO_TELEGRAM"); v != "" {
		cfg.Redis.QueueToTelegram = v
	}
	if v := os.Getenv("REST_SERVICE_URL"); v != "" {
		cfg.Services.RESTServiceURL = v
	}
	if v := os.Getenv("RAG_SERVICE_URL"); v != "" {
		cfg.Services.RAGServiceURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAIAPIKey = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		cfg.Providers.TavilyAPIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("GRAFANA_URL"); v != "" {
		cfg.Observability.GrafanaURL = v
	}
	if v := os.Getenv("PROMETHEUS_URL"); v != "" {
		cfg.Observability.PrometheusURL = v
	}
	if v := os.Getenv("LOKI_URL"); v != "" {
		cfg.Observability.LokiURL = v
	}
	if v, ok := envSeconds("HTTP_CLIENT_TIMEOUT"); ok {
		cfg.HTTPClient.OverallTimeout = v
	}
	if v, ok := envInt("MAX_RETRIES"); ok {
		cfg.Queue.MaxRetries = v
		cfg.HTTPClient.MaxRetries = v
	}
	if v := os.Getenv("LOCAL_DB_DSN"); v != "" {
		cfg.LocalDB.DSN = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envSeconds(key string) (time.Duration, bool) {
	n, ok := envInt(key)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
