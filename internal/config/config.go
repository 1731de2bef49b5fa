package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable through STORE.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env   string // APP_ENV (dev, test, prod)
	Port  string // APP_PORT
	Store string // STORE: memory or mysql

	DBUser string // DB_USER
	DBPass string // DB_PASS (empty allowed)
	DBHost string // DB_HOST
	DBPort string // DB_PORT
	DBName string // DB_NAME

	JWTSecret      string // JWT_SECRET signs staff access tokens
	AccessTTLMin   int    // ACCESS_TOKEN_TTL_MIN
	BcryptCost     int    // BCRYPT_COST
	SessionHashKey string // SESSION_HASH_KEY signs the party session cookie

	Timezone             string        // APP_TIMEZONE for civil timestamps
	CapacityMin          int           // TABLE_CAPACITY_MIN
	CapacityMax          int           // TABLE_CAPACITY_MAX
	PoolSize             int           // POOL_SIZE tables seeded when no layout file is given
	DefaultTableCapacity int           // DEFAULT_TABLE_CAPACITY
	PoolLayoutFile       string        // POOL_LAYOUT_FILE (YAML)
	ReuseWindow          time.Duration // REUSE_WINDOW, 0 disables reuse
	HeldWarning          time.Duration // HELD_WARNING_MINUTES
	NotifyBuffer         int           // NOTIFY_BUFFER queued notice batches

	AMQPURL string // RABBITMQ_URL or AMQP_URL; empty disables the push channel
	LogDir  string // LOG_DIR for the broker consumers' log files

	AdminEmail    string // BOOTSTRAP_ADMIN_EMAIL creates an admin on serve when missing
	AdminPassword string // BOOTSTRAP_ADMIN_PASSWORD
}

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already present in the environment win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration values from environment variables.  Every
// missing or malformed required value is reported in the returned error.
func Load() (Config, error) {
	var p parser
	cfg := Config{
		Env:   p.str("APP_ENV", "dev"),
		Port:  p.str("APP_PORT", "8080"),
		Store: strings.ToLower(p.str("STORE", StoreMemory)),

		JWTSecret:      p.must("JWT_SECRET"),
		AccessTTLMin:   p.num("ACCESS_TOKEN_TTL_MIN", 120),
		BcryptCost:     p.num("BCRYPT_COST", 10),
		SessionHashKey: p.must("SESSION_HASH_KEY"),

		Timezone:             p.str("APP_TIMEZONE", "America/Argentina/Buenos_Aires"),
		CapacityMin:          p.num("TABLE_CAPACITY_MIN", 1),
		CapacityMax:          p.num("TABLE_CAPACITY_MAX", 20),
		PoolSize:             p.num("POOL_SIZE", 10),
		DefaultTableCapacity: p.num("DEFAULT_TABLE_CAPACITY", 4),
		PoolLayoutFile:       os.Getenv("POOL_LAYOUT_FILE"),
		ReuseWindow:          p.dur("REUSE_WINDOW", 0),
		HeldWarning:          time.Duration(p.num("HELD_WARNING_MINUTES", 10)) * time.Minute,
		NotifyBuffer:         p.num("NOTIFY_BUFFER", 256),

		AMQPURL: firstEnv("RABBITMQ_URL", "AMQP_URL"),
		LogDir:  p.str("LOG_DIR", "logs"),

		AdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		AdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}
	switch cfg.Store {
	case StoreMemory:
	case StoreMySQL:
		cfg.DBUser = p.must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = p.must("DB_HOST")
		cfg.DBPort = p.must("DB_PORT")
		cfg.DBName = p.must("DB_NAME")
	default:
		p.fail(fmt.Errorf("invalid STORE %q (want memory or mysql)", cfg.Store))
	}
	if cfg.CapacityMin < 1 || cfg.CapacityMax < cfg.CapacityMin {
		p.fail(fmt.Errorf("invalid table capacity range [%d, %d]", cfg.CapacityMin, cfg.CapacityMax))
	}
	if cfg.DefaultTableCapacity < cfg.CapacityMin || cfg.DefaultTableCapacity > cfg.CapacityMax {
		p.fail(fmt.Errorf("DEFAULT_TABLE_CAPACITY %d outside [%d, %d]",
			cfg.DefaultTableCapacity, cfg.CapacityMin, cfg.CapacityMax))
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		p.fail(fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}
	if cfg.PoolSize < 0 {
		p.fail(fmt.Errorf("POOL_SIZE must not be negative"))
	}
	return cfg, p.err()
}

// parser accumulates errors so Load can report every bad variable at once.
type parser struct{ errs []error }

func (p *parser) fail(err error) { p.errs = append(p.errs, err) }

func (p *parser) err() error { return errors.Join(p.errs...) }

// must retrieves the value of a required environment variable.
func (p *parser) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		p.fail(fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (p *parser) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (p *parser) num(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(fmt.Errorf("invalid int for %s: %q", key, s))
		return def
	}
	return n
}

func (p *parser) dur(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		p.fail(fmt.Errorf("invalid duration for %s: %q", key, s))
		return def
	}
	return d
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
