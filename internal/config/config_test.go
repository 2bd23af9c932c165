package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"worldbuilder-agent/internal/integrations/paramstore"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GEMINI_API_KEY", "gm-key")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ProviderGemini, cfg.Oracle.Provider)
	require.Equal(t, "gemini-2.0-flash-lite", cfg.Oracle.SelectorModel)
	require.Equal(t, "gemini-2.0-flash-lite", cfg.Oracle.HandlerModel)
	require.Equal(t, "gm-key", cfg.Oracle.APIKey)
	require.Zero(t, cfg.Oracle.Temperature)
	require.Zero(t, cfg.Oracle.Timeout)
	require.Equal(t, 2000, cfg.Service.MaxInputLength)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.UsesParamStore())
	require.NoError(t, cfg.Validate())
}

func TestLoad_GoogleKeyTakesPrecedence(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google")
	t.Setenv("GEMINI_API_KEY", "gemini")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "google", cfg.Oracle.APIKey)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "worldbuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oracle:
  provider: openai
  selector_model: gpt-4o-mini
  handler_model: gpt-4o
  timeout: 45s
service:
  max_input_length: 500
log:
  development: true
`), 0o600))
	t.Setenv("WORLDBUILDER_ORACLE__HANDLER_MODEL", "gpt-4.1")
	t.Setenv("WORLDBUILDER_ORACLE__TEMPERATURE", "0.4")
	t.Setenv("WORLDBUILDER_AUDIT__TABLE", "turns")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, cfg.Oracle.Provider)
	require.Equal(t, "gpt-4o-mini", cfg.Oracle.SelectorModel)
	require.Equal(t, "gpt-4.1", cfg.Oracle.HandlerModel)
	require.InDelta(t, 0.4, cfg.Oracle.Temperature, 1e-6)
	require.Equal(t, 45*time.Second, cfg.Oracle.Timeout)
	require.Equal(t, 500, cfg.Service.MaxInputLength)
	require.Equal(t, "turns", cfg.Audit.Table)
	require.True(t, cfg.Log.Development)
	require.Equal(t, "sk-test", cfg.Oracle.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "config: read")
}

func TestEnvKey(t *testing.T) {
	require.Equal(t, "oracle.selector_model", envKey("WORLDBUILDER_ORACLE__SELECTOR_MODEL"))
	require.Equal(t, "metrics.addr", envKey("WORLDBUILDER_METRICS__ADDR"))
}

func validConfig() *Config {
	return &Config{
		Oracle: OracleConfig{
			Provider:      ProviderGemini,
			SelectorModel: "m",
			HandlerModel:  "m",
			APIKey:        "k",
		},
		Service: ServiceConfig{MaxInputLength: 100},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Oracle.APIKey = ""
	err := cfg.Validate()
	require.ErrorContains(t, err, "no API key configured")
	require.ErrorContains(t, err, "GOOGLE_API_KEY or GEMINI_API_KEY")

	cfg.Params.Prefix = "/worldbuilder"
	require.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Oracle.Provider = "claude"
	cfg.Oracle.HandlerModel = " "
	cfg.Oracle.Temperature = 3
	cfg.Service.MaxInputLength = 0
	err = cfg.Validate()
	require.ErrorContains(t, err, "oracle.provider")
	require.ErrorContains(t, err, "oracle.handler_model")
	require.ErrorContains(t, err, "oracle.temperature")
	require.ErrorContains(t, err, "service.max_input_length")
}

type failingGetter struct{}

func (failingGetter) GetParameter(context.Context, string) (string, error) {
	return "", errors.New("throttled")
}

func TestApplyParams(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.ApplyParams(context.Background(), paramstore.Static{"oracle/handler_model": "gemini-2.5-pro"}))
	require.Equal(t, "m", cfg.Oracle.SelectorModel)
	require.Equal(t, "gemini-2.5-pro", cfg.Oracle.HandlerModel)

	err := cfg.ApplyParams(context.Background(), failingGetter{})
	require.ErrorContains(t, err, "throttled")
}

func TestTokenGetter(t *testing.T) {
	cfg := validConfig()
	v, err := cfg.TokenGetter(nil).GetParameter(context.Background(), TokenParam)
	require.NoError(t, err)
	require.Equal(t, "k", v)

	store := paramstore.Static{TokenParam: `{"token":"from-ssm"}`}
	cfg.Oracle.APIKey = ""
	cfg.Params.Prefix = "/worldbuilder"
	v, err = cfg.TokenGetter(store).GetParameter(context.Background(), TokenParam)
	require.NoError(t, err)
	require.Equal(t, `{"token":"from-ssm"}`, v)
}
