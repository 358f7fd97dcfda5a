package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Governor  GovernorConfig
	Generator GeneratorConfig
	Publisher PublisherConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
	FrontendURL string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SchedulerConfig holds the compiled-in defaults for the dispatcher. All of
// them can be overridden at runtime through the settings store.
type SchedulerConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

type GovernorConfig struct {
	RateLimitPerHour int
	DailyTokenBudget int
	NotifyCooldown   time.Duration
}

type GeneratorConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type PublisherConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}

	cfg.App.Name = viper.GetString("app.name")
	cfg.App.Environment = viper.GetString("app.environment")
	cfg.App.Debug = viper.GetBool("app.debug")
	cfg.App.FrontendURL = viper.GetString("app.frontend_url")

	cfg.Server.Host = viper.GetString("server.host")
	cfg.Server.Port = viper.GetInt("server.port")
	cfg.Server.ReadTimeout = viper.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = viper.GetDuration("server.write_timeout")
	cfg.Server.IdleTimeout = viper.GetDuration("server.idle_timeout")

	cfg.Database.Host = viper.GetString("database.host")
	cfg.Database.Port = viper.GetInt("database.port")
	cfg.Database.User = viper.GetString("database.user")
	cfg.Database.Password = viper.GetString("database.password")
	cfg.Database.Name = viper.GetString("database.name")
	cfg.Database.SSLMode = viper.GetString("database.sslmode")
	cfg.Database.MaxOpenConns = viper.GetInt("database.max_open_conns")
	cfg.Database.MaxIdleConns = viper.GetInt("database.max_idle_conns")
	cfg.Database.ConnMaxLifetime = viper.GetDuration("database.conn_max_lifetime")

	cfg.Redis.Host = viper.GetString("redis.host")
	cfg.Redis.Port = viper.GetInt("redis.port")
	cfg.Redis.Password = viper.GetString("redis.password")
	cfg.Redis.DB = viper.GetInt("redis.db")
	cfg.Redis.Enabled = viper.GetBool("redis.enabled")

	cfg.Scheduler.SweepInterval = viper.GetDuration("scheduler.sweep_interval")
	cfg.Scheduler.BatchSize = viper.GetInt("scheduler.batch_size")

	cfg.Governor.RateLimitPerHour = viper.GetInt("governor.rate_limit_per_hour")
	cfg.Governor.DailyTokenBudget = viper.GetInt("governor.daily_token_budget")
	cfg.Governor.NotifyCooldown = viper.GetDuration("governor.notify_cooldown")

	cfg.Generator.BaseURL = viper.GetString("generator.base_url")
	cfg.Generator.APIKey = viper.GetString("generator.api_key")
	cfg.Generator.Model = viper.GetString("generator.model")
	cfg.Generator.MaxTokens = viper.GetInt("generator.max_tokens")
	cfg.Generator.Timeout = viper.GetDuration("generator.timeout")

	cfg.Publisher.BaseURL = viper.GetString("publisher.base_url")
	cfg.Publisher.APIKey = viper.GetString("publisher.api_key")
	cfg.Publisher.Timeout = viper.GetDuration("publisher.timeout")
	cfg.Publisher.RequestsPerSec = viper.GetFloat64("publisher.requests_per_sec")

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "postpilot")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.frontend_url", "http://localhost:3000")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.idle_timeout", 60*time.Second)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.name", "postpilot")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.enabled", false)

	viper.SetDefault("scheduler.sweep_interval", 60*time.Second)
	viper.SetDefault("scheduler.batch_size", 100)

	viper.SetDefault("governor.rate_limit_per_hour", 100)
	viper.SetDefault("governor.daily_token_budget", 50000)
	viper.SetDefault("governor.notify_cooldown", 15*time.Minute)

	viper.SetDefault("generator.base_url", "https://api.openai.com/v1")
	viper.SetDefault("generator.model", "gpt-4o-mini")
	viper.SetDefault("generator.max_tokens", 500)
	viper.SetDefault("generator.timeout", 10*time.Second)

	viper.SetDefault("publisher.base_url", "")
	viper.SetDefault("publisher.timeout", 10*time.Second)
	viper.SetDefault("publisher.requests_per_sec", 5)
}
