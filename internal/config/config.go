package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"plate-service/internal/plate"
)

type HTTPConfig struct {
	Host           string
	Port           int
	UploadMaxBytes int64
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type OCRConfig struct {
	ServiceURL    string
	InternalToken string
	Timeout       time.Duration
	MaxRetries    int
	RateLimitRPS  float64
}

type PlateConfig struct {
	ExtraShapes    []plate.ShapeRule
	CommunityLimit int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	OCR         OCRConfig
	Plate       PlateConfig
}

// ScoringConfig returns the default plate rules plus any configured shapes.
func (c *Config) ScoringConfig() plate.ScoringConfig {
	return plate.DefaultScoringConfig().WithShapes(c.Plate.ExtraShapes...)
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	extraShapes, err := plate.ParseShapeRules(v.GetString("PLATE_EXTRA_SHAPES"))
	if err != nil {
		return nil, fmt.Errorf("PLATE_EXTRA_SHAPES: %w", err)
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		OCR: OCRConfig{
			ServiceURL:    v.GetString("OCR_SERVICE_URL"),
			InternalToken: v.GetString("OCR_INTERNAL_TOKEN"),
			Timeout:       v.GetDuration("OCR_TIMEOUT"),
			MaxRetries:    v.GetInt("OCR_MAX_RETRIES"),
			RateLimitRPS:  v.GetFloat64("OCR_RATE_LIMIT_RPS"),
		},
		Plate: PlateConfig{
			ExtraShapes:    extraShapes,
			CommunityLimit: v.GetInt("COMMUNITY_LIMIT"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.UploadMaxBytes == 0 {
		cfg.HTTP.UploadMaxBytes = 10 << 20
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 30 * time.Second
	}
	if cfg.OCR.MaxRetries == 0 {
		cfg.OCR.MaxRetries = 3
	}
	if cfg.OCR.RateLimitRPS == 0 {
		cfg.OCR.RateLimitRPS = 5
	}
	if cfg.Plate.CommunityLimit == 0 {
		cfg.Plate.CommunityLimit = 200
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.OCR.MaxRetries < 0 {
		return fmt.Errorf("OCR_MAX_RETRIES must not be negative")
	}
	if cfg.OCR.RateLimitRPS < 0 {
		return fmt.Errorf("OCR_RATE_LIMIT_RPS must not be negative")
	}
	return nil
}
