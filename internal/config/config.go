package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	DatabaseURL     string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string
	// ServiceName tags log lines and is set per binary.
	ServiceName string

	// Payment gateway credentials for tokenized charges.
	PaymentGatewayURL string
	PaymentGatewayKey string

	// Alert delivery. Template is "generic" or "slack"; an empty URL falls
	// back to log-only delivery.
	AlertWebhookURL      string
	AlertWebhookTemplate string

	// Billing report archive (S3-compatible). Empty bucket disables archiving.
	ReportsBucket string
	S3Endpoint    string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string

	// PlansPath points at the YAML plan catalog.
	PlansPath string

	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		TemporalAddress: getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:     getEnv("METRICS_ADDR", ":9100"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ServiceName:     getEnv("SERVICE_NAME", ""),

		PaymentGatewayURL: getEnv("PAYMENT_GATEWAY_URL", ""),
		PaymentGatewayKey: getEnv("PAYMENT_GATEWAY_KEY", ""),

		AlertWebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
		AlertWebhookTemplate: getEnv("ALERT_WEBHOOK_TEMPLATE", "generic"),

		ReportsBucket: getEnv("REPORTS_BUCKET", ""),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   getEnv("S3_SECRET_KEY", ""),

		PlansPath: getEnv("PLANS_PATH", "plans.yaml"),

		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
	}

	return cfg, nil
}

// Validate checks that the fields the given service depends on are set.
func (c *Config) Validate(service string) error {
	var missing []string

	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch service {
	case "billing-api":
		require(c.DatabaseURL, "DATABASE_URL")
		require(c.HTTPListenAddr, "HTTP_LISTEN_ADDR")
	case "worker":
		require(c.DatabaseURL, "DATABASE_URL")
		require(c.TemporalAddress, "TEMPORAL_ADDRESS")
		require(c.PaymentGatewayURL, "PAYMENT_GATEWAY_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration for %s: %s", service, strings.Join(missing, ", "))
	}

	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		return fmt.Errorf("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set or both be empty")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
