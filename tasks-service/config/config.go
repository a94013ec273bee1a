package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type Config struct {
	Env  string `env:"ENV" env-default:"local"`
	HTTP HTTPConfig
	DB   DBConfig
	WS   WSConfig
}

type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" env-default:""`
	Port            string        `env:"SERVER_PORT_TASKS" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"5s"`
	TrustProxy      bool          `env:"HTTP_TRUST_PROXY" env-default:"false"`
}

func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

type DBConfig struct {
	Driver       string `env:"DB_DRIVER" env-default:"postgres"`
	DSN          string `env:"DB_DSN"`
	Host         string `env:"POSTGRES_HOST"`
	Port         int    `env:"POSTGRES_PORT" env-default:"5432"`
	User         string `env:"POSTGRES_USER"`
	Password     string `env:"POSTGRES_PASSWORD"`
	Name         string `env:"POSTGRES_DB"`
	SSLMode      string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
}

// ConnString returns DB_DSN when set, otherwise a postgres:// URL built from
// the POSTGRES_* variables with every component escaped.
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

type WSConfig struct {
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" env-separator:","`
	RateLimit      int           `env:"WS_RATE_LIMIT" env-default:"5"`
	RateWindow     time.Duration `env:"WS_RATE_WINDOW" env-default:"1s"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env: %q", c.Env)
	}

	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.DSN == "" && (c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "") {
			return errors.New("POSTGRES_HOST, POSTGRES_USER and POSTGRES_DB must be set when DB_DSN is empty")
		}
	case DriverSQLite:
		if c.DB.DSN == "" {
			return errors.New("DB_DSN must be set for the sqlite3 driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %q", c.DB.Driver)
	}

	if c.WS.RateLimit <= 0 {
		return fmt.Errorf("WS_RATE_LIMIT must be positive, got %d", c.WS.RateLimit)
	}
	return nil
}
