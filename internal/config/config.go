package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProfileAgent     = "agent"
	ProfileCollector = "collector"
	ProfileManual    = "manual"
)

var ErrUnknownProfile = errors.New("unknown instrumentation profile")

type Config struct {
	TableName      string        `mapstructure:"table_name"`
	Profile        string        `mapstructure:"instrumentation_profile"`
	ServiceName    string        `mapstructure:"service_name"`
	AuxiliaryFetch bool          `mapstructure:"auxiliary_fetch"`
	UpstreamURL    string        `mapstructure:"upstream_base_url"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	OTLPEndpoint   string        `mapstructure:"otel_exporter_otlp_endpoint"`
	AWSRegion      string        `mapstructure:"aws_region"`
	DynamoEndpoint string        `mapstructure:"dynamodb_endpoint"`
	Port           string        `mapstructure:"port"`
	RateLimit      int           `mapstructure:"rate_limit_per_min"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	// LambdaRuntimeAPI is set by the Lambda runtime; empty means local mode.
	LambdaRuntimeAPI string `mapstructure:"aws_lambda_runtime_api"`
}

// Load reads configuration from the environment only; Lambda has no config
// files to read.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("table_name", "")
	v.SetDefault("instrumentation_profile", ProfileManual)
	v.SetDefault("service_name", "")
	v.SetDefault("upstream_base_url", "https://jsonplaceholder.typicode.com")
	v.SetDefault("http_timeout", "0s")
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("aws_region", "")
	v.SetDefault("dynamodb_endpoint", "")
	v.SetDefault("port", "8080")
	v.SetDefault("rate_limit_per_min", 120)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("aws_lambda_runtime_api", "")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("service_name", "SERVICE_NAME", "OTEL_SERVICE_NAME", "AWS_LAMBDA_FUNCTION_NAME"); err != nil {
		return nil, fmt.Errorf("bind service name: %w", err)
	}
	if err := v.BindEnv("auxiliary_fetch", "AUXILIARY_FETCH"); err != nil {
		return nil, fmt.Errorf("bind auxiliary fetch: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Profile = strings.ToLower(strings.TrimSpace(cfg.Profile))
	if !v.IsSet("auxiliary_fetch") {
		cfg.AuxiliaryFetch = cfg.Profile == ProfileCollector
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ingest-" + cfg.Profile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileAgent, ProfileCollector, ProfileManual:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProfile, c.Profile)
	}
	if c.HTTPTimeout < 0 {
		return errors.New("http_timeout cannot be negative")
	}
	if c.RateLimit <= 0 {
		return errors.New("rate_limit_per_min must be greater than 0")
	}
	return nil
}

func (c *Config) InLambda() bool {
	return c.LambdaRuntimeAPI != ""
}

func Profiles() []string {
	return []string{ProfileAgent, ProfileCollector, ProfileManual}
}
