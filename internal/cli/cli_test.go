package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/bsdetector/internal/model"
)

// clearEnv blanks every variable the config layer reads
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY",
		"SEARXNG_URL", "DATABASE_URL",
		"BSDETECTOR_LLM_PROVIDER", "BSDETECTOR_LLM_MODEL", "BSDETECTOR_LLM_API_KEY",
		"BSDETECTOR_STORE_DRIVER", "BSDETECTOR_STORE_DSN", "BSDETECTOR_SEARCH_BASE_URL",
		"BSDETECTOR_AGENT_MAX_STEPS", "BSDETECTOR_SERVER_REQUEST_TIMEOUT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, configure(v))
	return v
}

func TestDecodeConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := decodeConfig(newViper(t))
	require.NoError(t, err)

	def := model.DefaultConfig()
	assert.Equal(t, def.Server, cfg.Server)
	assert.Equal(t, def.Agent, cfg.Agent)
	assert.Equal(t, def.Search, cfg.Search)
	assert.Equal(t, def.Store, cfg.Store)
	assert.Equal(t, def.Events, cfg.Events)
	assert.Equal(t, def.LLM.Model, cfg.LLM.Model)
	assert.InDelta(t, def.LLM.Temperature, cfg.LLM.Temperature, 0.0001)
}

func TestDecodeConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BSDETECTOR_LLM_PROVIDER", "openrouter")
	t.Setenv("BSDETECTOR_LLM_MODEL", "meta-llama/llama-3.1-70b-instruct")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("SEARXNG_URL", "http://search.internal:8080")
	t.Setenv("DATABASE_URL", "postgres://bs:bs@db/bs")
	t.Setenv("BSDETECTOR_AGENT_MAX_STEPS", "4")
	t.Setenv("BSDETECTOR_SERVER_REQUEST_TIMEOUT", "90s")

	cfg, err := decodeConfig(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, "meta-llama/llama-3.1-70b-instruct", cfg.LLM.Model)
	assert.Equal(t, "or-key", cfg.LLM.APIKey)
	assert.Equal(t, "http://search.internal:8080", cfg.Search.BaseURL)
	assert.Equal(t, "postgres://bs:bs@db/bs", cfg.Store.DSN)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Agent.MaxSteps)
	assert.Equal(t, 90*time.Second, cfg.Server.RequestTimeout)
}

func TestDecodeConfig_ExplicitDriverWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://bs:bs@db/bs")
	t.Setenv("BSDETECTOR_STORE_DRIVER", "memory")

	cfg, err := decodeConfig(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestDecodeConfig_ExplicitAPIKeyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "from-openai-env")
	t.Setenv("BSDETECTOR_LLM_API_KEY", "from-bsdetector-env")

	cfg, err := decodeConfig(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, "from-bsdetector-env", cfg.LLM.APIKey)
}

func TestDecodeConfig_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: ollama
  model: qwen2.5:14b
cache:
  ttl: 2h
store:
  driver: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "qwen2.5:14b", cfg.LLM.Model)
	assert.Equal(t, "", cfg.LLM.APIKey)
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Store.Driver)
	// Untouched sections keep their defaults
	assert.Equal(t, 500, cfg.Events.Capacity)
}

func TestAPIKeyFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "oa")
	t.Setenv("ANTHROPIC_API_KEY", "an")

	assert.Equal(t, "oa", apiKeyFromEnv("openai"))
	assert.Equal(t, "an", apiKeyFromEnv("Anthropic"))
	assert.Equal(t, "an", apiKeyFromEnv("claude"))
	assert.Equal(t, "", apiKeyFromEnv("openrouter"))
	assert.Equal(t, "", apiKeyFromEnv("ollama"))
}

func TestInitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, initConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# bsdetector configuration")

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig(), cfg)

	err = initConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRedact(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"
	cfg.Store.DSN = "postgres://user:pass@db/bs"

	out := redact(cfg)
	assert.Equal(t, "********", out.LLM.APIKey)
	assert.Equal(t, "********", out.Store.DSN)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey, "input is not modified")

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, out))
	assert.NotContains(t, buf.String(), "sk-secret")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/blog/launch", "example.com_blog_launch"},
		{"https://example.com/", "example.com"},
		{"https://example.com/a?b=c", "example.com_a"},
		{"not a url", "not_a_url"},
		{"", "record"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}

	long := "https://example.com/" + string(bytes.Repeat([]byte("a"), 300))
	assert.Len(t, sanitizeFilename(long), 100)
}

func TestPrintRecord(t *testing.T) {
	rep := model.NewStructuredReport("## Overall Assessment\nMostly fluff.")
	rep.OverallAssessment = "Mostly fluff."
	record := &model.InvestigationRecord{
		Report: &rep,
		Replacements: []model.Annotation{
			{Find: "10x faster", Annotation: "No benchmark", Type: model.SeverityFalse},
			{Find: "revolutionary", Annotation: "Marketing", Type: model.SeverityFluff},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printRecord(&buf, record, 80))
	assert.Contains(t, buf.String(), "Annotations: 2 (false 1, suspicious 0, verified 0, fluff 1)")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]bool{"found": false}))
	assert.Equal(t, "{\n  \"found\": false\n}\n", buf.String())
}
