package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is filled from flags, falling back to environment variables (which
// may come from a .env file) and then to defaults.
type Config struct {
	ServerPort string `short:"p" long:"port" env:"SERVER_PORT" default:"5001" description:"HTTP listen port"`

	Storage    string        `long:"storage" env:"STORAGE" default:"postgres" choice:"postgres" choice:"memory" description:"persistence backend"`
	DBHost     string        `long:"db-host" env:"DB_HOST" default:"localhost" description:"PostgreSQL host"`
	DBPort     string        `long:"db-port" env:"DB_PORT" default:"5432" description:"PostgreSQL port"`
	DBUser     string        `long:"db-user" env:"DB_USER" default:"messenger" description:"PostgreSQL user"`
	DBPassword string        `long:"db-password" env:"DB_PASSWORD" default:"messenger_dev_password" description:"PostgreSQL password"`
	DBName     string        `long:"db-name" env:"DB_NAME" default:"messenger" description:"PostgreSQL database"`
	DBWait     time.Duration `long:"db-wait" env:"DB_WAIT" default:"30s" description:"how long to retry the initial database connection"`

	RedisURL string `long:"redis-url" env:"REDIS_URL" description:"redis address for the cross-instance backplane; empty runs a single instance"`

	JWTSecret   string `long:"jwt-secret" env:"JWT_SECRET" default:"dev-secret-change-me" description:"HMAC secret for access tokens"`
	RequireAuth bool   `long:"require-auth" env:"REQUIRE_AUTH" description:"reject unauthenticated API and realtime requests"`

	LogLevel string `short:"l" long:"loglevel" env:"LOG_LEVEL" default:"info" description:"set the logging level [debug, info, notice, warning, error, critical]"`
	LogFile  string `long:"logfile" env:"LOG_FILE" description:"also write logs to this file, rotated"`
	Verbose  bool   `short:"v" long:"verbose" env:"VERBOSE" description:"print debug logs to stdout"`

	RateLimit            int           `long:"rate-limit" env:"RATE_LIMIT" default:"50" description:"max HTTP requests per second"`
	CORSOrigins          []string      `long:"cors-origin" env:"CORS_ORIGINS" env-delim:"," default:"*" description:"allowed CORS origins"`
	PollTimeout          time.Duration `long:"poll-timeout" env:"POLL_TIMEOUT" default:"25s" description:"long-polling request timeout"`
	WSInsecureSkipVerify bool          `long:"ws-insecure-skip-verify" env:"WS_INSECURE_SKIP_VERIFY" description:"accept websocket upgrades from any origin"`

	Seed bool `long:"seed" env:"SEED" description:"create test users when the database is empty"`
}

// Load reads an optional .env file and parses args on top of it.
func Load(args []string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%s", c.DBHost, c.DBPort),
		Path:     c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) Addr() string {
	return ":" + c.ServerPort
}
