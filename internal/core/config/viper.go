package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned struct.
func LoadConfig(configPath string) (*EvaluatorConfig, error) {
	v := viper.New()

	d := DefaultEvaluatorConfig()
	v.SetDefault("evaluator.host", d.Host)
	v.SetDefault("evaluator.port", d.Port)
	v.SetDefault("evaluator.max_connections", d.MaxConnections)
	v.SetDefault("evaluator.request_timeout", d.RequestTimeout.String())
	v.SetDefault("evaluator.max_rules", d.MaxRules)
	v.SetDefault("evaluator.workers", d.Workers)
	v.SetDefault("evaluator.plugins_dir", d.PluginsDir)
	v.SetDefault("evaluator.data_dir", d.DataDir)

	// RC_EVALUATOR_PORT -> evaluator.port
	v.SetEnvPrefix("RC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &EvaluatorConfig{
		Host:           v.GetString("evaluator.host"),
		Port:           v.GetInt("evaluator.port"),
		MaxConnections: v.GetInt("evaluator.max_connections"),
		RequestTimeout: v.GetDuration("evaluator.request_timeout"),
		MaxRules:       v.GetInt("evaluator.max_rules"),
		Workers:        v.GetInt("evaluator.workers"),
		PluginsDir:     v.GetString("evaluator.plugins_dir"),
		DataDir:        v.GetString("evaluator.data_dir"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks port range and positive limits. Callers re-run it after
// applying flag overrides.
func Validate(cfg *EvaluatorConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxRules <= 0 {
		return fmt.Errorf("max_rules must be positive, got %d", cfg.MaxRules)
	}
	if cfg.Workers <= 0 || cfg.Workers > 256 {
		return fmt.Errorf("workers must be between 1 and 256, got %d", cfg.Workers)
	}
	return nil
}

func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("hmac_secret") || v.IsSet("evaluator.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use RC_HMAC_SECRET environment variable)")
	}
	return nil
}
