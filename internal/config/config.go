package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		FrontendURL string   `yaml:"frontend_url"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL           string `yaml:"ttl"`
		QuestionsFile string `yaml:"questions_file"`
		ProgressTTL   string `yaml:"progress_ttl"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret   string   `yaml:"jwt_secret"`
		AdminEmails []string `yaml:"admin_emails"`
	} `yaml:"auth"`
	Stripe struct {
		SecretKey     string `yaml:"secret_key"`
		WebhookSecret string `yaml:"webhook_secret"`
		Currency      string `yaml:"currency"`
		EventTTL      string `yaml:"event_ttl"`
	} `yaml:"stripe"`
	Products map[domain.Product]domain.ProductConfig `yaml:"products"`
	Purchase struct {
		TokenTTL       string `yaml:"token_ttl"`
		VerifyAttempts int    `yaml:"verify_attempts"`
		VerifyBackoff  string `yaml:"verify_backoff"`
	} `yaml:"purchase"`
	Reconcile struct {
		Interval    string `yaml:"interval"`
		MinAge      string `yaml:"min_age"`
		BatchSize   int    `yaml:"batch_size"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"reconcile"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, err
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment when present.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// Validate rejects product definitions that cannot be sold.
func (c Config) Validate() error {
	for name, p := range c.Products {
		if p.PriceCents <= 0 {
			return fmt.Errorf("product %s: price_cents must be positive", name)
		}
		if p.Mode != domain.ModePayment && p.Mode != domain.ModeSubscription {
			return fmt.Errorf("product %s: unknown mode %q", name, p.Mode)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"STRIPE_SECRET_KEY", &cfg.Stripe.SecretKey},
		{"STRIPE_WEBHOOK_SECRET", &cfg.Stripe.WebhookSecret},
		{"AUTH_JWT_SECRET", &cfg.Auth.JWTSecret},
		{"DATABASE_URL", &cfg.Postgres.URL},
		{"REDIS_ADDR", &cfg.Redis.Addr},
		{"FRONTEND_URL", &cfg.Server.FrontendURL},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = "http://localhost:3000"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{cfg.Server.FrontendURL}
	}
	if cfg.Quiz.QuestionsFile == "" {
		cfg.Quiz.QuestionsFile = "config/questions.yaml"
	}
	if cfg.Stripe.Currency == "" {
		cfg.Stripe.Currency = "usd"
	}
	if len(cfg.Products) == 0 {
		cfg.Products = DefaultProducts()
	}
	for name, p := range cfg.Products {
		if p.Mode == "" {
			p.Mode = domain.ModePayment
		}
		if p.Name == "" {
			p.Name = string(name)
		}
		cfg.Products[name] = p
	}
	if cfg.Purchase.VerifyAttempts <= 0 {
		cfg.Purchase.VerifyAttempts = 5
	}
	if cfg.Reconcile.BatchSize <= 0 {
		cfg.Reconcile.BatchSize = 100
	}
	if cfg.Reconcile.Concurrency <= 0 {
		cfg.Reconcile.Concurrency = 4
	}
}

// DefaultProducts is the catalog used when the config names none.
func DefaultProducts() map[domain.Product]domain.ProductConfig {
	return map[domain.Product]domain.ProductConfig{
		domain.ProductReport: {
			Name:          "Detailed moral development report",
			PriceCents:    1499,
			Mode:          domain.ModePayment,
			RequireResult: true,
		},
		domain.ProductSubscription: {
			Name:       "Monthly subscription",
			PriceCents: 999,
			Mode:       domain.ModeSubscription,
		},
		domain.ProductBook: {
			Name:       "Moral development book",
			PriceCents: 2499,
			Mode:       domain.ModePayment,
		},
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
