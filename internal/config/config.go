// Package config loads leadgen configuration from config.yaml, a .env file,
// and LEADGEN_* environment variables.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadgen-cli/internal/normalize"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig         `yaml:"store" mapstructure:"store"`
	Anthropic    AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Chat         ChatConfig          `yaml:"chat" mapstructure:"chat"`
	AI           AIConfig            `yaml:"ai" mapstructure:"ai"`
	Google       GoogleConfig        `yaml:"google" mapstructure:"google"`
	Jina         JinaConfig          `yaml:"jina" mapstructure:"jina"`
	Search       SearchConfig        `yaml:"search" mapstructure:"search"`
	Browser      BrowserConfig       `yaml:"browser" mapstructure:"browser"`
	Enrich       EnrichConfig        `yaml:"enrich" mapstructure:"enrich"`
	Agent        AgentConfig         `yaml:"agent" mapstructure:"agent"`
	Scoring      ScoringConfig       `yaml:"scoring" mapstructure:"scoring"`
	Industries   map[string][]string `yaml:"industries" mapstructure:"industries"`
	Fingerprints map[string]string   `yaml:"fingerprints" mapstructure:"fingerprints"`
	JobLog       JobLogConfig        `yaml:"joblog" mapstructure:"joblog"`
	Kafka        KafkaConfig         `yaml:"kafka" mapstructure:"kafka"`
	Notion       NotionConfig        `yaml:"notion" mapstructure:"notion"`
	Salesforce   SalesforceConfig    `yaml:"salesforce" mapstructure:"salesforce"`
	Temporal     TemporalConfig      `yaml:"temporal" mapstructure:"temporal"`
	Server       ServerConfig        `yaml:"server" mapstructure:"server"`
	Log          LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. Driver is postgres, sqlite,
// or memory.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	AgentModel string `yaml:"agent_model" mapstructure:"agent_model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ChatConfig points at an OpenAI or Azure compatible chat-completions API.
type ChatConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Model      string `yaml:"model" mapstructure:"model"`
	Deployment string `yaml:"deployment" mapstructure:"deployment"`
	APIVersion string `yaml:"api_version" mapstructure:"api_version"`
}

// AIConfig selects the completion backend. Provider is anthropic, chat, or none.
type AIConfig struct {
	Provider         string `yaml:"provider" mapstructure:"provider"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// GoogleConfig holds Custom Search credentials.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	CX      string `yaml:"cx" mapstructure:"cx"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// SearchConfig configures the query stage.
type SearchConfig struct {
	Provider     string   `yaml:"provider" mapstructure:"provider"`
	MaxResults   int      `yaml:"max_results" mapstructure:"max_results"`
	QueryDelayMS int      `yaml:"query_delay_ms" mapstructure:"query_delay_ms"`
	MaxQueries   int      `yaml:"max_queries" mapstructure:"max_queries"`
	Templates    []string `yaml:"templates" mapstructure:"templates"`
}

// QueryDelay is QueryDelayMS as a duration.
func (c SearchConfig) QueryDelay() time.Duration {
	return time.Duration(c.QueryDelayMS) * time.Millisecond
}

// BrowserConfig configures headless Chrome.
type BrowserConfig struct {
	ChromePath     string `yaml:"chrome_path" mapstructure:"chrome_path"`
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	NavTimeoutSecs int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	SettleMS       int    `yaml:"settle_ms" mapstructure:"settle_ms"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// EnrichConfig configures the enrichment stage.
type EnrichConfig struct {
	DelayMS        int `yaml:"delay_ms" mapstructure:"delay_ms"`
	MaxEnrichments int `yaml:"max_enrichments" mapstructure:"max_enrichments"`
}

// Delay is DelayMS as a duration.
func (c EnrichConfig) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// AgentConfig bounds agentic runs.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations"`
	MaxCompanies  int `yaml:"max_companies" mapstructure:"max_companies"`
}

// ScoringConfig overrides confidence weights. Zero fields keep the built-in
// weight.
type ScoringConfig struct {
	EmailValid          int `yaml:"email_valid" mapstructure:"email_valid"`
	EmailPersonal       int `yaml:"email_personal" mapstructure:"email_personal"`
	EmailDomainMatch    int `yaml:"email_domain_match" mapstructure:"email_domain_match"`
	GenericEmailPenalty int `yaml:"generic_email_penalty" mapstructure:"generic_email_penalty"`

	PersonEmail    int `yaml:"person_email" mapstructure:"person_email"`
	PersonPhone    int `yaml:"person_phone" mapstructure:"person_phone"`
	PersonName     int `yaml:"person_name" mapstructure:"person_name"`
	PersonTitle    int `yaml:"person_title" mapstructure:"person_title"`
	PersonLinkedIn int `yaml:"person_linkedin" mapstructure:"person_linkedin"`

	CompanyDomain      int `yaml:"company_domain" mapstructure:"company_domain"`
	CompanyName        int `yaml:"company_name" mapstructure:"company_name"`
	CompanyDescription int `yaml:"company_description" mapstructure:"company_description"`
	CompanyIndustry    int `yaml:"company_industry" mapstructure:"company_industry"`
	CompanyEmail       int `yaml:"company_email" mapstructure:"company_email"`
	CompanyPhone       int `yaml:"company_phone" mapstructure:"company_phone"`
	CompanyTechStack   int `yaml:"company_tech_stack" mapstructure:"company_tech_stack"`
	CompanySocial      int `yaml:"company_social" mapstructure:"company_social"`
}

// Weights overlays the configured values on normalize.DefaultWeights.
func (c ScoringConfig) Weights() normalize.Weights {
	w := normalize.DefaultWeights()
	set := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	set(&w.EmailValid, c.EmailValid)
	set(&w.EmailPersonal, c.EmailPersonal)
	set(&w.EmailDomainMatch, c.EmailDomainMatch)
	set(&w.GenericEmailPenalty, c.GenericEmailPenalty)
	set(&w.PersonEmail, c.PersonEmail)
	set(&w.PersonPhone, c.PersonPhone)
	set(&w.PersonName, c.PersonName)
	set(&w.PersonTitle, c.PersonTitle)
	set(&w.PersonLinkedIn, c.PersonLinkedIn)
	set(&w.CompanyDomain, c.CompanyDomain)
	set(&w.CompanyName, c.CompanyName)
	set(&w.CompanyDescription, c.CompanyDescription)
	set(&w.CompanyIndustry, c.CompanyIndustry)
	set(&w.CompanyEmail, c.CompanyEmail)
	set(&w.CompanyPhone, c.CompanyPhone)
	set(&w.CompanyTechStack, c.CompanyTechStack)
	set(&w.CompanySocial, c.CompanySocial)
	return w
}

// JobLogConfig sizes the job log sink.
type JobLogConfig struct {
	Buffer    int `yaml:"buffer" mapstructure:"buffer"`
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	FlushMS   int `yaml:"flush_ms" mapstructure:"flush_ms"`
}

// KafkaConfig enables the job log mirror when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// NotionConfig holds the export database.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// TemporalConfig points the worker and client at a Temporal cluster.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the HTTP job API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads .env (if present), then config.yaml (if present), then
// LEADGEN_* environment variables, over the built-in defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.agent_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("chat.key", "")
	v.SetDefault("chat.base_url", "https://api.openai.com/v1")
	v.SetDefault("chat.model", "gpt-4o-mini")
	v.SetDefault("chat.deployment", "")
	v.SetDefault("chat.api_version", "2024-06-01")
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.breaker_threshold", 5)
	v.SetDefault("ai.breaker_reset_secs", 30)
	v.SetDefault("google.key", "")
	v.SetDefault("google.cx", "")
	v.SetDefault("google.base_url", "https://www.googleapis.com")
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("search.provider", "duckduckgo")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.query_delay_ms", 1500)
	v.SetDefault("search.max_queries", 20)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 15)
	v.SetDefault("browser.settle_ms", 2000)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("enrich.delay_ms", 2000)
	v.SetDefault("enrich.max_enrichments", 25)
	v.SetDefault("agent.max_iterations", 25)
	v.SetDefault("agent.max_companies", 10)
	v.SetDefault("joblog.buffer", 1024)
	v.SetDefault("joblog.batch_size", 50)
	v.SetDefault("joblog.flush_ms", 500)
	v.SetDefault("kafka.topic", "leadgen.job-logs")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "leadgen")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: store,
// agent, serve, worker, notion, salesforce.
func (c *Config) Validate(mode string) error {
	var errs []string
	checkStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for postgres")
			}
		case "sqlite":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for sqlite")
			}
		case "memory":
		default:
			errs = append(errs, "store.driver must be postgres, sqlite, or memory")
		}
	}

	switch mode {
	case "store":
		checkStore()
	case "agent":
		checkStore()
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "serve":
		checkStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "worker":
		checkStore()
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required")
		}
	case "notion":
		if c.Notion.Token == "" {
			errs = append(errs, "notion.token is required")
		}
		if c.Notion.DatabaseID == "" {
			errs = append(errs, "notion.database_id is required")
		}
	case "salesforce":
		if c.Salesforce.ClientID == "" || c.Salesforce.Username == "" || c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.client_id, salesforce.username, and salesforce.key_path are required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Agent.MaxCompanies <= 0 || c.Agent.MaxIterations <= 0 {
		errs = append(errs, "agent.max_companies and agent.max_iterations must be > 0")
	}
	if c.JobLog.BatchSize <= 0 || c.JobLog.Buffer <= 0 {
		errs = append(errs, "joblog.buffer and joblog.batch_size must be > 0")
	}
	if c.AI.Provider != "" && c.AI.Provider != "anthropic" && c.AI.Provider != "chat" && c.AI.Provider != "none" {
		errs = append(errs, "ai.provider must be anthropic, chat, or none")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
