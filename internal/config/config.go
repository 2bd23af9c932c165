package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// TokenParam is the parameter name the oracle clients read their API token from.
const TokenParam = "oracle-token"

type Config struct {
	Oracle  OracleConfig  `koanf:"oracle"`
	Service ServiceConfig `koanf:"service"`
	Params  ParamsConfig  `koanf:"params"`
	Audit   AuditConfig   `koanf:"audit"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
}

type OracleConfig struct {
	Provider      string        `koanf:"provider"`
	SelectorModel string        `koanf:"selector_model"`
	HandlerModel  string        `koanf:"handler_model"`
	APIKey        string        `koanf:"api_key"`
	BaseURL       string        `koanf:"base_url"`
	Temperature   float32       `koanf:"temperature"`
	Timeout       time.Duration `koanf:"timeout"`
}

type ServiceConfig struct {
	MaxInputLength int `koanf:"max_input_length"`
}

// ParamsConfig enables SSM lookups when Prefix is set.
type ParamsConfig struct {
	Prefix string `koanf:"prefix"`
}

// AuditConfig enables the DynamoDB turn log when Table is set.
type AuditConfig struct {
	Table string `koanf:"table"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// UsesParamStore reports whether secrets and overrides come from SSM.
func (c *Config) UsesParamStore() bool {
	return strings.TrimSpace(c.Params.Prefix) != ""
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Oracle.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("oracle.provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.Oracle.Provider))
	}
	if strings.TrimSpace(c.Oracle.SelectorModel) == "" {
		errs = append(errs, errors.New("oracle.selector_model is required"))
	}
	if strings.TrimSpace(c.Oracle.HandlerModel) == "" {
		errs = append(errs, errors.New("oracle.handler_model is required"))
	}
	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2 {
		errs = append(errs, fmt.Errorf("oracle.temperature must be within [0, 2], got %v", c.Oracle.Temperature))
	}
	if c.Oracle.Timeout < 0 {
		errs = append(errs, errors.New("oracle.timeout must not be negative"))
	}
	if c.Service.MaxInputLength <= 0 {
		errs = append(errs, errors.New("service.max_input_length must be positive"))
	}
	if strings.TrimSpace(c.Oracle.APIKey) == "" && !c.UsesParamStore() {
		errs = append(errs, fmt.Errorf("no API key configured: set %s or WORLDBUILDER_ORACLE__API_KEY", strings.Join(keyEnvVars(c.Oracle.Provider), " or ")))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// keyEnvVars lists the conventional provider variables, in lookup order.
func keyEnvVars(provider string) []string {
	if provider == ProviderOpenAI {
		return []string{"OPENAI_API_KEY"}
	}
	return []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
}
