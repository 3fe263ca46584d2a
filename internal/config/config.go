package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Record store backends.
const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Directory sources.
const (
	DirectorySourceFile     = "file"
	DirectorySourceDatabase = "database"
)

// Config holds runtime configuration values for the evaluation service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	LogLevel        string
	CORSOrigins     string
	StoreDriver     string
	StoreDir        string
	DatabaseURL     string
	RedisURL        string
	LockTTL         time.Duration
	LockWait        time.Duration
	NATSURL         string
	NATSSubject     string
	DirectorySource string
	DirectoryFile   string
	JWTSecret       string
	UnansweredGate  string
	SubmitRateMax   int
	SubmitRateWin   time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UsesDatabase reports whether any component needs a relational connection.
func (c Config) UsesDatabase() bool {
	return c.StoreDriver != StoreDriverFile || c.DirectorySource == DirectorySourceDatabase
}

// Load reads configuration values from EVAL_* environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EVAL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Evaluation API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("store.driver", StoreDriverFile)
	v.SetDefault("store.dir", "data/evaluations")
	v.SetDefault("lock.ttl", "10s")
	v.SetDefault("lock.wait", "5s")
	v.SetDefault("nats.subject", "evaluations.events")
	v.SetDefault("directory.source", DirectorySourceFile)
	v.SetDefault("directory.file", "config/roster.toml")
	v.SetDefault("scoring.unanswered_gate", "compliant")
	v.SetDefault("rate_limit.submit_max", 30)
	v.SetDefault("rate_limit.window", "1m")

	lockTTL, err := parseDuration(v, "lock.ttl")
	if err != nil {
		return Config{}, err
	}
	lockWait, err := parseDuration(v, "lock.wait")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "rate_limit.window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		LogLevel:        strings.ToLower(v.GetString("log.level")),
		CORSOrigins:     v.GetString("cors.origins"),
		StoreDriver:     strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
		StoreDir:        v.GetString("store.dir"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		LockTTL:         lockTTL,
		LockWait:        lockWait,
		NATSURL:         v.GetString("nats.url"),
		NATSSubject:     v.GetString("nats.subject"),
		DirectorySource: strings.ToLower(strings.TrimSpace(v.GetString("directory.source"))),
		DirectoryFile:   v.GetString("directory.file"),
		JWTSecret:       v.GetString("jwt.secret"),
		UnansweredGate:  strings.ToLower(strings.TrimSpace(v.GetString("scoring.unanswered_gate"))),
		SubmitRateMax:   v.GetInt("rate_limit.submit_max"),
		SubmitRateWin:   rateWindow,
	}

	switch cfg.StoreDriver {
	case StoreDriverFile:
		if strings.TrimSpace(cfg.StoreDir) == "" {
			return Config{}, fmt.Errorf("store dir must be provided for the file driver")
		}
	case StoreDriverPostgres, StoreDriverSQLite:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database url must be provided for the %s driver", cfg.StoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	switch cfg.DirectorySource {
	case DirectorySourceFile:
		if strings.TrimSpace(cfg.DirectoryFile) == "" {
			return Config{}, fmt.Errorf("directory file must be provided for the file source")
		}
	case DirectorySourceDatabase:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database url must be provided for the database directory")
		}
	default:
		return Config{}, fmt.Errorf("unknown directory source %q", cfg.DirectorySource)
	}

	if cfg.SubmitRateMax <= 0 {
		cfg.SubmitRateMax = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}
