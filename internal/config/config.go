package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Store kinds.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// EnvPrefix namespaces every environment variable read here.
const EnvPrefix = "ARTICLES_"

type Config struct {
	Addr            string
	DiagAddr        string
	Store           string
	DatabaseURL     string
	CORSOrigins     []string
	Dev             bool
	Migrate         bool
	ShutdownTimeout time.Duration
}

// LoadDotenv loads .env from the working directory when one exists.
// Variables already set in the environment win.
func LoadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// FromEnv returns the defaults, overridden by the environment.
func FromEnv() Config {
	return Config{
		Addr:            getEnv(EnvPrefix+"ADDR", ":3333"),
		DiagAddr:        getEnv(EnvPrefix+"DIAG_ADDR", ":9999"),
		Store:           getEnv(EnvPrefix+"STORE", StorePostgres),
		DatabaseURL:     getEnv(EnvPrefix+"DATABASE_URL", os.Getenv("DATABASE_URL")),
		CORSOrigins:     splitList(getEnv(EnvPrefix+"CORS_ORIGINS", "")),
		Dev:             getEnvBool(EnvPrefix+"DEV", false),
		Migrate:         getEnvBool(EnvPrefix+"MIGRATE", false),
		ShutdownTimeout: getEnvDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// BindFlags registers flags whose defaults are the current values of c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "application address")
	fs.StringVar(&c.DiagAddr, "diag-addr", c.DiagAddr, "diagnostics address (metrics, health); empty disables it")
	fs.StringVar(&c.Store, "store", c.Store, "article store: postgres or memory")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "PostgreSQL connection URL")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "allowed CORS origins")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "human readable debug logging")
	fs.BoolVar(&c.Migrate, "migrate", c.Migrate, "create the articles table on startup")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown timeout")
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("postgres store needs a database url (--database-url or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	if c.Addr == "" {
		return errors.New("empty listen address")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}

	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, fallback.String()))
	if err != nil {
		return fallback
	}

	return v
}

func splitList(s string) []string {
	var out []string

	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			out = append(out, p)
		}
	}

	return out
}
