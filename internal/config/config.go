// Package config reads process configuration from the environment, optionally
// layered over a YAML file named by CONFIG_FILE.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	MemoryBackendInProcess = "memory"
	MemoryBackendPostgres  = "postgres"
)

type Config struct {
	ServerPort string
	LogLevel   string
	LogFormat  string

	DatabaseURL   string
	RunMigrations bool

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ModelBudget     string
	ModelMid        string
	ModelPremium    string
	ClassifierModel string

	AgentMaxSteps    int
	AgentBudget      time.Duration
	ModelCallTimeout time.Duration
	ModelMaxAttempts int

	MemoryTTL     time.Duration
	MemoryBackend string
	HistoryTurns  int
	FreeTierLimit int

	NATSURL           string
	NATSSubjectPrefix string

	JWTSecret      string
	AllowedOrigins string
	RateLimitRPS   float64
	RateLimitBurst int

	OverdueSweepCron string
}

// Load reads .env when present, then CONFIG_FILE when set, then the environment.
// Environment values win over the file; the file wins over defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src = file
	}

	cfg := Config{
		ServerPort: src.mustEnv("SERVER_PORT", "8080"),
		LogLevel:   src.mustEnv("LOG_LEVEL", "info"),
		LogFormat:  src.mustEnv("LOG_FORMAT", "json"),

		DatabaseURL:   src.mustEnv("DATABASE_URL", ""),
		RunMigrations: src.mustEnvBool("RUN_MIGRATIONS", true),

		OpenAIAPIKey:    src.mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   src.mustEnv("OPENAI_BASE_URL", ""),
		ModelBudget:     src.mustEnv("MODEL_BUDGET", "gpt-4o-mini"),
		ModelMid:        src.mustEnv("MODEL_MID", "gpt-4o"),
		ModelPremium:    src.mustEnv("MODEL_PREMIUM", "gpt-4.1"),
		ClassifierModel: src.mustEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),

		AgentMaxSteps:    src.mustEnvInt("AGENT_MAX_STEPS", 5),
		AgentBudget:      src.mustEnvDuration("AGENT_BUDGET", 24*time.Second),
		ModelCallTimeout: src.mustEnvDuration("MODEL_CALL_TIMEOUT", 10*time.Second),
		ModelMaxAttempts: src.mustEnvInt("MODEL_MAX_ATTEMPTS", 2),

		MemoryTTL:     src.mustEnvDuration("MEMORY_TTL", 30*time.Minute),
		MemoryBackend: strings.ToLower(src.mustEnv("MEMORY_BACKEND", MemoryBackendInProcess)),
		HistoryTurns:  src.mustEnvInt("HISTORY_TURNS", 10),
		FreeTierLimit: src.mustEnvInt("FREE_TIER_LIMIT", 3),

		NATSURL:           src.mustEnv("NATS_URL", ""),
		NATSSubjectPrefix: src.mustEnv("NATS_SUBJECT_PREFIX", "invoice_agent"),

		JWTSecret:      src.mustEnv("JWT_SECRET", ""),
		AllowedOrigins: src.mustEnv("ALLOWED_ORIGINS", ""),
		RateLimitRPS:   src.mustEnvFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: src.mustEnvInt("RATE_LIMIT_BURST", 5),

		OverdueSweepCron: src.mustEnv("OVERDUE_SWEEP_CRON", "@hourly"),
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the process cannot start with.
func (c Config) Validate() error {
	switch c.MemoryBackend {
	case MemoryBackendInProcess:
	case MemoryBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: MEMORY_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: MEMORY_BACKEND must be %q or %q, got %q",
			MemoryBackendInProcess, MemoryBackendPostgres, c.MemoryBackend)
	}
	if c.AgentMaxSteps <= 0 {
		return fmt.Errorf("config: AGENT_MAX_STEPS must be positive")
	}
	if c.AgentBudget <= 0 {
		return fmt.Errorf("config: AGENT_BUDGET must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("config: rate limits must not be negative")
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// source holds the YAML overlay, keyed like the environment.
type source map[string]string

func readFile(path string) (source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	out := make(source, len(doc))
	for k, v := range doc {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := strings.TrimSpace(s.lookup(key))
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}
