package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	BillingTimezone   string `env:"BILLING_TIMEZONE" envDefault:"UTC"`
	BillingWorkers    int    `env:"BILLING_WORKERS" envDefault:"8"`

	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	ScheduleFile  string `env:"SCHEDULE_FILE" envDefault:"schedule.yaml"`

	// AsyncAllocation lets the API hand utility allocations to the worker.
	AsyncAllocation   bool `env:"ASYNC_ALLOCATION" envDefault:"false"`
	WorkerConcurrency int  `env:"WORKER_CONCURRENCY" envDefault:"10"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.BillingWorkers < 1 || cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("config.Load: worker counts must be positive")
	}
	return &cfg, nil
}

// Location is the time zone billing periods and deadlines are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BillingTimezone)
	if err != nil {
		return nil, fmt.Errorf("BILLING_TIMEZONE %q: %w", c.BillingTimezone, err)
	}
	return loc, nil
}
