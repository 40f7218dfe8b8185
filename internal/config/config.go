// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// StripeConfig holds the payment provider credentials.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// ServiceConfig holds all configuration for the reservation service.
type ServiceConfig struct {
	Port         string
	AppEnv       string
	JWTSecret    string
	KafkaBrokers []string
	SweepCron    string
	DB           DatabaseConfig
	Stripe       StripeConfig
}

// Load reads configuration from RESERVATION_-prefixed environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("RESERVATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", ":8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("sweep_cron", "@hourly")
	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "reservations")
	v.SetDefault("db_sslmode", "disable")

	cfg := &ServiceConfig{
		Port:         v.GetString("port"),
		AppEnv:       v.GetString("app_env"),
		JWTSecret:    v.GetString("jwt_secret"),
		KafkaBrokers: strings.Split(v.GetString("kafka_brokers"), ","),
		SweepCron:    v.GetString("sweep_cron"),
		DB: DatabaseConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe_secret_key"),
			WebhookSecret: v.GetString("stripe_webhook_secret"),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("RESERVATION_JWT_SECRET is required")
	}
	if cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("RESERVATION_STRIPE_SECRET_KEY is required")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return nil, fmt.Errorf("RESERVATION_STRIPE_WEBHOOK_SECRET is required")
	}
	return cfg, nil
}
