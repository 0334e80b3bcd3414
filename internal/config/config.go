package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all the configuration for the application.
type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer `yaml:"http_server"`
	Database   `yaml:"database"`
	Tracking   `yaml:"tracking"`
	Mailer     `yaml:"mailer"`
	Auth       `yaml:"auth"`
}

// HTTPServer holds HTTP server specific configuration.
type HTTPServer struct {
	Address      string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Database holds PostgreSQL connection configuration.
type Database struct {
	Host            string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string `yaml:"user" env:"DB_USER" env-default:"linktrace"`
	Password        string `yaml:"password" env:"DB_PASSWORD" env-default:""`
	DBName          string `yaml:"dbname" env:"DB_NAME" env-default:"linktrace"`
	SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	Timezone        string `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
	SeedData        bool   `yaml:"seed_data" env:"DB_SEED_DATA" env-default:"true"`
}

// Tracking holds the access-tracking engine configuration.
type Tracking struct {
	// SecretKey is the application-wide secret. It keys the URL hashes when
	// no dedicated HashKey is configured.
	SecretKey string `yaml:"secret_key" env:"TRACKING_SECRET_KEY" env-required:"true"`
	// HashKey optionally keys the URL hashes on its own. Changing it
	// invalidates every URL issued under the previous key.
	HashKey string `yaml:"hash_key" env:"TRACKING_HASH_KEY" env-default:""`
	// BaseURL is everything before the access prefix in issued URLs, without
	// a trailing slash (e.g. https://links.example.com).
	BaseURL string `yaml:"base_url" env:"TRACKING_BASE_URL" env-default:"http://localhost:8080"`
	// AccessPrefix is the path segment the access endpoint is mounted under.
	AccessPrefix string `yaml:"access_prefix" env:"TRACKING_ACCESS_PREFIX" env-default:"t"`
	// PagesDir is where the static HTML targets live.
	PagesDir string `yaml:"pages_dir" env:"TRACKING_PAGES_DIR" env-default:"assets/pages"`
	// UARegexesPath points at a custom ua-parser regexes file. Empty uses
	// the definitions shipped with uap-go.
	UARegexesPath string `yaml:"ua_regexes_path" env:"TRACKING_UA_REGEXES" env-default:""`
}

// HashSecret returns the key used for URL hashing: the dedicated hash key
// when set, otherwise the application secret.
func (t *Tracking) HashSecret() []byte {
	if t.HashKey != "" {
		return []byte(t.HashKey)
	}
	return []byte(t.SecretKey)
}

// Mailer holds the email dispatch worker configuration.
type Mailer struct {
	Workers         int           `yaml:"workers" env:"MAILER_WORKERS" env-default:"3"`
	BufferSize      int           `yaml:"buffer_size" env:"MAILER_BUFFER_SIZE" env-default:"256"`
	RetryAttempts   int           `yaml:"retry_attempts" env:"MAILER_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay      time.Duration `yaml:"retry_delay" env:"MAILER_RETRY_DELAY" env-default:"1s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"MAILER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// Auth holds JWT configuration for the admin API.
type Auth struct {
	JWTSecret            string        `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-default:""`
	AccessTokenDuration  time.Duration `yaml:"access_token_duration" env:"AUTH_ACCESS_TOKEN_DURATION" env-default:"15m"`
	RefreshTokenDuration time.Duration `yaml:"refresh_token_duration" env:"AUTH_REFRESH_TOKEN_DURATION" env-default:"168h"`
	Issuer               string        `yaml:"issuer" env:"AUTH_ISSUER" env-default:"LinkTrace-Backend"`
}

// JWTKey returns the JWT signing key, falling back to the application
// secret when no dedicated one is configured.
func (c *Config) JWTKey() []byte {
	if c.Auth.JWTSecret != "" {
		return []byte(c.Auth.JWTSecret)
	}
	return []byte(c.Tracking.SecretKey)
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	// Check if config file path is specified
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml" // default path
	}

	// Try to load config file
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("cannot read config: %s", err)
		}
	} else {
		// If config file doesn't exist, use environment variables only
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from environment: %s", err)
		}
	}

	return &cfg
}
