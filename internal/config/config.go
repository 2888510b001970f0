package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	SandboxURL    = "https://sandbox.safaricom.co.ke"
	ProductionURL = "https://api.safaricom.co.ke"
)

type Mpesa struct {
	Environment      string
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	PassKey          string
	CallbackURL      string
	AccountReference string
	Timeout          time.Duration
}

type Database struct {
	Driver        string
	User          string
	Password      string
	Host          string
	Port          string
	Name          string
	MongoURI      string
	MongoDatabase string
}

type Sweep struct {
	Schedule string
	Grace    time.Duration
	Batch    int
}

type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string
	RedisAddr string
	Mpesa     Mpesa
	Database  Database
	Sweep     Sweep
}

// LoadEnv loads the first .env file found in paths. Missing files are not an
// error; the process environment is used instead.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			logrus.WithField("file", p).Debug("loaded env file")
			return
		}
	}
	logrus.Info("No .env file found, using system environment variables")
}

func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("MPESA_ENVIRONMENT", "sandbox")
	v.SetDefault("MPESA_ACCOUNT_REFERENCE", "Payment")
	v.SetDefault("MPESA_TIMEOUT", "15s")
	v.SetDefault("STORE_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("MONGO_DATABASE", "mpesa")
	v.SetDefault("SWEEP_SCHEDULE", "*/5 * * * *")
	v.SetDefault("SWEEP_GRACE", "2m")
	v.SetDefault("SWEEP_BATCH", 100)

	cfg := &Config{
		Port:      v.GetString("PORT"),
		GinMode:   v.GetString("GIN_MODE"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
		RedisAddr: v.GetString("REDIS_URL"),
		Mpesa: Mpesa{
			Environment:      strings.ToLower(v.GetString("MPESA_ENVIRONMENT")),
			BaseURL:          v.GetString("MPESA_BASE_URL"),
			ConsumerKey:      v.GetString("MPESA_CONSUMER_KEY"),
			ConsumerSecret:   v.GetString("MPESA_CONSUMER_SECRET"),
			ShortCode:        v.GetString("MPESA_SHORTCODE"),
			PassKey:          v.GetString("MPESA_PASSKEY"),
			CallbackURL:      v.GetString("MPESA_CALLBACK_URL"),
			AccountReference: v.GetString("MPESA_ACCOUNT_REFERENCE"),
			Timeout:          v.GetDuration("MPESA_TIMEOUT"),
		},
		Database: Database{
			Driver:        strings.ToLower(v.GetString("STORE_DRIVER")),
			User:          v.GetString("DB_USER"),
			Password:      v.GetString("DB_PASSWORD"),
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetString("DB_PORT"),
			Name:          v.GetString("DB_NAME"),
			MongoURI:      v.GetString("MONGO_URI"),
			MongoDatabase: v.GetString("MONGO_DATABASE"),
		},
		Sweep: Sweep{
			Schedule: v.GetString("SWEEP_SCHEDULE"),
			Grace:    v.GetDuration("SWEEP_GRACE"),
			Batch:    v.GetInt("SWEEP_BATCH"),
		},
	}

	if cfg.Mpesa.BaseURL == "" {
		cfg.Mpesa.BaseURL = SandboxURL
		if cfg.Mpesa.Environment == "production" {
			cfg.Mpesa.BaseURL = ProductionURL
		}
	}
	cfg.Mpesa.BaseURL = strings.TrimRight(cfg.Mpesa.BaseURL, "/")
	return cfg
}

// Validate reports every gateway and storage setting that must be present
// before payments can be served.
func (c *Config) Validate() error {
	var missing []string
	required := []struct{ key, value string }{
		{"MPESA_CONSUMER_KEY", c.Mpesa.ConsumerKey},
		{"MPESA_CONSUMER_SECRET", c.Mpesa.ConsumerSecret},
		{"MPESA_SHORTCODE", c.Mpesa.ShortCode},
		{"MPESA_PASSKEY", c.Mpesa.PassKey},
		{"MPESA_CALLBACK_URL", c.Mpesa.CallbackURL},
		{"PORT", c.Port},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}

	switch c.Mpesa.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("MPESA_ENVIRONMENT must be sandbox or production, got %q", c.Mpesa.Environment)
	}

	switch c.Database.Driver {
	case "mysql":
		if c.Database.Name == "" {
			missing = append(missing, "DB_NAME")
		}
	case "mongo":
		if c.Database.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be mysql or mongo, got %q", c.Database.Driver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ConfigureLogger applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c *Config) ConfigureLogger() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
