package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"worldbuilder-agent/internal/integrations/paramstore"
)

const envPrefix = "WORLDBUILDER_"

//go:embed defaults.yaml
var defaultsYAML []byte

// Load reads configuration with this precedence, highest first:
//
//  1. WORLDBUILDER_* environment variables (WORLDBUILDER_ORACLE__SELECTOR_MODEL -> oracle.selector_model)
//  2. the YAML file at path, when path is not empty
//  3. embedded defaults
//
// A .env file in the working directory is loaded first and never overrides
// variables already set. The provider's conventional key variable fills
// oracle.api_key when it is empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path = strings.TrimSpace(path); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Oracle.Provider = strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider))
	if strings.TrimSpace(cfg.Oracle.APIKey) == "" {
		for _, name := range keyEnvVars(cfg.Oracle.Provider) {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				cfg.Oracle.APIKey = v
				break
			}
		}
	}
	return &cfg, nil
}

// envKey maps WORLDBUILDER_SECTION__FIELD_NAME to section.field_name.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// ApplyParams overrides the model names with values found in the parameter
// store. Missing parameters keep the loaded values.
func (c *Config) ApplyParams(ctx context.Context, g paramstore.Getter) error {
	overrides := []struct {
		name   string
		target *string
	}{
		{"oracle/selector_model", &c.Oracle.SelectorModel},
		{"oracle/handler_model", &c.Oracle.HandlerModel},
	}
	for _, o := range overrides {
		v, ok, err := paramstore.Lookup(ctx, g, o.name)
		if err != nil {
			return fmt.Errorf("config: parameter %s: %w", o.name, err)
		}
		if ok && v != "" {
			*o.target = v
		}
	}
	return nil
}

// TokenGetter returns the getter the oracle clients read TokenParam from:
// the parameter store when one is configured, else the loaded API key.
func (c *Config) TokenGetter(store paramstore.Getter) paramstore.Getter {
	if store != nil && c.UsesParamStore() && strings.TrimSpace(c.Oracle.APIKey) == "" {
		return store
	}
	return paramstore.Static{TokenParam: c.Oracle.APIKey}
}
