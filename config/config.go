package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the typed application configuration. Environment variables always
// win over values read from a .env file, since godotenv never overrides them.
type Config struct {
	App  AppConfig
	DB   DBConfig
	HTTP HTTPConfig
	Auth AuthConfig
	SMTP SMTPConfig
	Shop ShopConfig
}

type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

type DBConfig struct {
	Driver      string // postgres or sqlite
	DatabaseURL string
}

type HTTPConfig struct {
	Port           string
	FrontendURL    string
	VendorURL      string
	AdminURL       string
	RateLimit      int // requests per RateWindowSecs per client IP
	RateWindowSecs int
}

// Addr is the listen address for http.Server.
func (c HTTPConfig) Addr() string {
	return ":" + c.Port
}

// AllowedOrigins lists the configured front-end origins for CORS.
func (c HTTPConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range []string{c.FrontendURL, c.VendorURL, c.AdminURL} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

type AuthConfig struct {
	JWTSecret      string // identity provider signing secret
	ServiceKeyHash string // bcrypt hash of the internal service key
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != 0 && c.From != ""
}

type ShopConfig struct {
	ShippingFee     decimal.Decimal
	FreeShippingMin decimal.Decimal
	StorefrontURL   string
}

// LoadEnv copies a .env file into the process environment. A missing file is
// fine; in production the variables are set directly.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ValidateEnv checks that critical environment variables are set.
// Returns an error if any critical variable is missing.
func ValidateEnv() error {
	var missing []string

	if os.Getenv("JWT_SECRET") == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if os.Getenv("DATABASE_URL") == "" && os.Getenv("DB_DRIVER") != "sqlite" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}

	if os.Getenv("FRONTEND_URL") == "" {
		log.Warn().Msg("FRONTEND_URL not set - CORS may not work correctly")
	}
	if os.Getenv("SERVICE_KEY_HASH") == "" {
		log.Warn().Msg("SERVICE_KEY_HASH not set - internal endpoints will reject every request")
	}
	if os.Getenv("SMTP_HOST") == "" || os.Getenv("SMTP_FROM") == "" {
		log.Warn().Msg("SMTP_HOST or SMTP_FROM not set - email notifications will not work")
	}

	return nil
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Load reads the configuration from the environment. Call LoadEnv first to
// pick up a .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	shippingFee, err := decimal.NewFromString(v.GetString("SHIPPING_FEE"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHIPPING_FEE: %w", err)
	}
	freeMin, err := decimal.NewFromString(v.GetString("FREE_SHIPPING_MIN"))
	if err != nil {
		return nil, fmt.Errorf("invalid FREE_SHIPPING_MIN: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			Driver:      v.GetString("DB_DRIVER"),
			DatabaseURL: v.GetString("DATABASE_URL"),
		},
		HTTP: HTTPConfig{
			Port:           v.GetString("PORT"),
			FrontendURL:    v.GetString("FRONTEND_URL"),
			VendorURL:      v.GetString("VENDOR_URL"),
			AdminURL:       v.GetString("ADMIN_URL"),
			RateLimit:      v.GetInt("RATE_LIMIT"),
			RateWindowSecs: v.GetInt("RATE_WINDOW_SECONDS"),
		},
		Auth: AuthConfig{
			JWTSecret:      v.GetString("JWT_SECRET"),
			ServiceKeyHash: v.GetString("SERVICE_KEY_HASH"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Shop: ShopConfig{
			ShippingFee:     shippingFee,
			FreeShippingMin: freeMin,
			StorefrontURL:   v.GetString("FRONTEND_URL"),
		},
	}

	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.HTTP.RateLimit <= 0 || cfg.HTTP.RateWindowSecs <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT and RATE_WINDOW_SECONDS must be positive")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "marketplace-backend")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=marketplace port=5432 sslmode=disable")
	v.SetDefault("PORT", "8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT", 100)
	v.SetDefault("RATE_WINDOW_SECONDS", 60)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SHIPPING_FEE", "4.99")
	v.SetDefault("FREE_SHIPPING_MIN", "50")
}
