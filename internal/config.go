package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Router        RouterConfig        `mapstructure:"router"`
	Import        ImportConfig        `mapstructure:"import"`
	Budget        BudgetConfig        `mapstructure:"budget"`
	Forecast      ForecastConfig      `mapstructure:"forecast"`
	Queue         QueueConfig         `mapstructure:"queue"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" validate:"required"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" validate:"required"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// LLMConfig configures the chat and transcription upstream. An empty APIKey disables the
// upstream and every chat is answered from the fallback set.
type LLMConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	Model              string        `mapstructure:"model"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxTokens          int           `mapstructure:"max_tokens"`
	DefaultHumor       string        `mapstructure:"default_humor"`
	SnapshotTTL        time.Duration `mapstructure:"snapshot_ttl"`
	SnapshotCacheSize  int           `mapstructure:"snapshot_cache_size"`
}

type RouterConfig struct {
	TipProbability float64 `mapstructure:"tip_probability"`
	Seed           int64   `mapstructure:"seed"`
}

type ImportConfig struct {
	UploadDir      string                 `mapstructure:"upload_dir"`
	MaxUploadBytes int64                  `mapstructure:"max_upload_bytes"`
	Workers        int                    `mapstructure:"workers"`
	QueueSize      int                    `mapstructure:"queue_size"`
	DataSources    map[string]string      `mapstructure:"data_sources"`
	StoredQueries  map[string]StoredQuery `mapstructure:"stored_queries"`
}

type StoredQuery struct {
	Source string `mapstructure:"source"`
	SQL    string `mapstructure:"sql"`
}

type BudgetConfig struct {
	DefaultTotal          float64 `mapstructure:"default_total"`
	DefaultFood           float64 `mapstructure:"default_food"`
	DefaultTransportation float64 `mapstructure:"default_transportation"`
	DefaultEntertainment  float64 `mapstructure:"default_entertainment"`
	DefaultBills          float64 `mapstructure:"default_bills"`
	DefaultShopping       float64 `mapstructure:"default_shopping"`
	DefaultOther          float64 `mapstructure:"default_other"`
	WarningRatio          float64 `mapstructure:"warning_ratio"`
}

type ForecastConfig struct {
	HighSeverityPercent float64 `mapstructure:"high_severity_percent"`
	SignificantPercent  float64 `mapstructure:"significant_percent"`
}

// QueueConfig enables the RabbitMQ import queue when URL is set.
type QueueConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

// ApplyDefaults fills zero values that have a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration == 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.TranscriptionModel == "" {
		c.LLM.TranscriptionModel = "whisper-1"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 20 * time.Second
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.DefaultHumor == "" {
		c.LLM.DefaultHumor = "medium"
	}
	if c.LLM.SnapshotTTL == 0 {
		c.LLM.SnapshotTTL = 5 * time.Minute
	}
	if c.LLM.SnapshotCacheSize == 0 {
		c.LLM.SnapshotCacheSize = 1000
	}
	if c.Router.TipProbability == 0 {
		c.Router.TipProbability = 0.2
	}
	if c.Import.UploadDir == "" {
		c.Import.UploadDir = "./uploads"
	}
	if c.Import.MaxUploadBytes == 0 {
		c.Import.MaxUploadBytes = 10 << 20
	}
	if c.Import.Workers == 0 {
		c.Import.Workers = 2
	}
	if c.Import.QueueSize == 0 {
		c.Import.QueueSize = 100
	}
	if c.Budget.DefaultTotal == 0 {
		c.Budget.DefaultTotal = 2500
		c.Budget.DefaultFood = 500
		c.Budget.DefaultTransportation = 300
		c.Budget.DefaultEntertainment = 200
		c.Budget.DefaultBills = 800
		c.Budget.DefaultShopping = 300
		c.Budget.DefaultOther = 400
	}
	if c.Budget.WarningRatio == 0 {
		c.Budget.WarningRatio = 0.9
	}
	if c.Forecast.HighSeverityPercent == 0 {
		c.Forecast.HighSeverityPercent = 20
	}
	if c.Forecast.SignificantPercent == 0 {
		c.Forecast.SignificantPercent = 15
	}
	if c.Queue.Exchange == "" {
		c.Queue.Exchange = "expense-insights"
	}
	if c.Queue.Queue == "" {
		c.Queue.Queue = "imports"
	}
}

// LoadConfigFromEnv builds the configuration from plain environment variables, used for
// container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("PORT", 8080),
			BaseURL:        getEnv("BASE_URL", ""),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
			ReadTimeout:    getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:    getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", ""),
			RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", ""),
			BCryptCost:         getEnvAsInt("BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		LLM: LLMConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", ""),
			Model:        getEnv("LLM_MODEL", ""),
			Timeout:      getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),
			DefaultHumor: getEnv("LLM_DEFAULT_HUMOR", "medium"),
		},
		Router: RouterConfig{
			TipProbability: getEnvAsFloat("ROUTER_TIP_PROBABILITY", 0.2),
			Seed:           int64(getEnvAsInt("ROUTER_SEED", 0)),
		},
		Import: ImportConfig{
			UploadDir:      getEnv("IMPORT_UPLOAD_DIR", "./uploads"),
			MaxUploadBytes: int64(getEnvAsInt("IMPORT_MAX_UPLOAD_BYTES", 10<<20)),
			Workers:        getEnvAsInt("IMPORT_WORKERS", 2),
		},
		Budget: BudgetConfig{
			DefaultTotal: getEnvAsFloat("BUDGET_DEFAULT_TOTAL", 0),
			WarningRatio: getEnvAsFloat("BUDGET_WARNING_RATIO", 0.9),
		},
		Queue: QueueConfig{
			URL: getEnv("AMQP_URL", ""),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("llm config: %v", err))
	}

	if err := c.Router.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("router config: %v", err))
	}

	if err := c.Import.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("import config: %v", err))
	}

	if err := c.Budget.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("budget config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return errors.New("access and refresh token secrets are required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *LLMConfig) Validate() error {
	switch c.DefaultHumor {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("default_humor must be low, medium or high, got %q", c.DefaultHumor)
	}
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	}
	return nil
}

func (c *RouterConfig) Validate() error {
	if c.TipProbability < 0 || c.TipProbability > 1 {
		return errors.New("tip_probability must be within [0, 1]")
	}
	return nil
}

func (c *ImportConfig) Validate() error {
	if c.MaxUploadBytes < 0 {
		return errors.New("max_upload_bytes cannot be negative")
	}
	for name, q := range c.StoredQueries {
		if _, ok := c.DataSources[q.Source]; !ok {
			return fmt.Errorf("stored query %s references unknown data source %s", name, q.Source)
		}
		if strings.TrimSpace(q.SQL) == "" {
			return fmt.Errorf("stored query %s has no sql", name)
		}
	}
	return nil
}

func (c *BudgetConfig) Validate() error {
	for name, v := range map[string]float64{
		"default_total":          c.DefaultTotal,
		"default_food":           c.DefaultFood,
		"default_transportation": c.DefaultTransportation,
		"default_entertainment":  c.DefaultEntertainment,
		"default_bills":          c.DefaultBills,
		"default_shopping":       c.DefaultShopping,
		"default_other":          c.DefaultOther,
	} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.WarningRatio < 0 || c.WarningRatio > 1 {
		return errors.New("warning_ratio must be within [0, 1]")
	}
	return nil
}
