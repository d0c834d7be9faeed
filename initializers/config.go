package initializers

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string   `env:"PORT" envDefault:"8080"`
	DBURL     string   `env:"DB_URL"`
	BaseURL   string   `env:"BASE_URL" envDefault:"http://localhost:3000"`
	PublicURL string   `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	Origins   []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	JWTSecret       string        `env:"JWT_SECRET"`
	SessionSecret   string        `env:"SESSION_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	VerificationTTL time.Duration `env:"VERIFICATION_TTL" envDefault:"24h"`

	Google GoogleConfig
	SMTP   SMTPConfig
	Blob   BlobConfig

	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"524288000"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
	CacheSize       int           `env:"CACHE_SIZE" envDefault:"1000"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"1m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type SMTPConfig struct {
	Host     string        `env:"SMTP_HOST"`
	Port     int           `env:"SMTP_PORT" envDefault:"587"`
	Username string        `env:"SMTP_USERNAME"`
	Password string        `env:"SMTP_PASSWORD"`
	From     string        `env:"SMTP_FROM" envDefault:"no-reply@rrepohub.local"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
}

type BlobConfig struct {
	Driver         string `env:"BLOB_DRIVER" envDefault:"local"`
	LocalDir       string `env:"LOCAL_UPLOAD_DIR" envDefault:"data"`
	AWSRegion      string `env:"AWS_REGION"`
	AWSBucket      string `env:"AWS_BUCKET_NAME"`
	SupabaseURL    string `env:"SUPABASE_URL"`
	SupabaseKey    string `env:"SUPABASE_KEY"`
	SupabaseBucket string `env:"SUPABASE_BUCKET" envDefault:"fileshare"`
}

// LoadConfig reads .env (skipped on Render) and then the environment.
func LoadConfig() (*Config, error) {
	if os.Getenv("RENDER") == "" {
		// A missing .env is normal outside local development.
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DBURL == "" {
		errs = append(errs, errors.New("DB_URL is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is not set"))
	}
	switch c.Blob.Driver {
	case "local":
	case "s3":
		if c.Blob.AWSBucket == "" {
			errs = append(errs, errors.New("AWS_BUCKET_NAME is required for the s3 blob driver"))
		}
	case "supabase":
		if c.Blob.SupabaseURL == "" || c.Blob.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required for the supabase blob driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_DRIVER %q", c.Blob.Driver))
	}
	return errors.Join(errs...)
}
