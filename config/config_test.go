package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tictacmesh/game"
	"github.com/hupe1980/tictacmesh/logging"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "http://localhost:1234/v1", cfg.Model.OpenAI.BaseURL)
	assert.Equal(t, "qwen/qwen3-14b", cfg.Model.OpenAI.ModelID)
	assert.Equal(t, 5, cfg.Game.MaxAgentRuns)
	assert.Equal(t, StartHuman, cfg.Game.StartingPlayer)
	require.NoError(t, cfg.Validate())
}

func TestMerge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := Default()
	cfg.Merge(&Config{})
	assert.Equal(t, Default(), cfg)
}

func TestMerge_OverridesNonZero(t *testing.T) {
	cfg := Default()
	cfg.Merge(&Config{
		Server: ServerConfig{Port: 9000},
		Model:  ModelConfig{Provider: ProviderAnthropic, Anthropic: AnthropicConfig{APIKey: "k", ThinkingBudget: 1024}},
		Game:   GameConfig{MaxAgentRuns: 3, DisableCommentary: true},
		Log:    LogConfig{Level: "debug"},
	})

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/socket.io", cfg.Server.SocketPath)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, int64(1024), cfg.Model.Anthropic.ThinkingBudget)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Model.Anthropic.ModelID)
	assert.Equal(t, 3, cfg.Game.MaxAgentRuns)
	assert.True(t, cfg.Game.DisableCommentary)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromEnv(t *testing.T) {
	env, err := FromEnv(lookup(map[string]string{
		"ENVIRONMENT":         "production",
		"API_PORT":            "8080",
		"MODEL_PROVIDER":      "OpenAI",
		"OPENAI_API_BASE_URL": "http://llm:1234/v1",
		"OPENAI_API_MODEL_ID": "qwen/qwen3-8b",
		"MAX_AGENT_RUNS":      " 3 ",
		"STARTING_PLAYER":     "Agent",
		"LOG_FORMAT":          "TEXT",
	}))
	require.NoError(t, err)

	assert.Equal(t, "production", env.Environment)
	assert.Equal(t, 8080, env.Server.Port)
	assert.Equal(t, ProviderOpenAI, env.Model.Provider)
	assert.Equal(t, "http://llm:1234/v1", env.Model.OpenAI.BaseURL)
	assert.Equal(t, "qwen/qwen3-8b", env.Model.OpenAI.ModelID)
	assert.Equal(t, 3, env.Game.MaxAgentRuns)
	assert.Equal(t, StartAgent, env.Game.StartingPlayer)
	assert.Equal(t, "text", env.Log.Format)
}

func TestFromEnv_InvalidNumber(t *testing.T) {
	_, err := FromEnv(lookup(map[string]string{"API_PORT": "eighty"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_PORT")
}

func TestLoad_LayersFileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9000
  allowed_origins: ["http://localhost:3000"]
game:
  max_agent_runs: 2
  retain_conversation: true
log:
  level: debug
`)
	t.Setenv("API_PORT", "9100")
	t.Setenv("MAX_AGENT_RUNS", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2, cfg.Game.MaxAgentRuns)
	assert.True(t, cfg.Game.RetainConversation)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Addr())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "server: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"socket path", func(c *Config) { c.Server.SocketPath = "socket.io" }, "server.socket_path"},
		{"provider", func(c *Config) { c.Model.Provider = "ollama" }, "model.provider"},
		{"anthropic key", func(c *Config) { c.Model.Provider = ProviderAnthropic }, "model.anthropic.api_key"},
		{"starting player", func(c *Config) { c.Game.StartingPlayer = "robot" }, "game.starting_player"},
		{"max agent runs", func(c *Config) { c.Game.MaxAgentRuns = 0 }, "game.max_agent_runs"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "log.format")
}

func TestStartingPlayer(t *testing.T) {
	cfg := Default()
	p, err := cfg.StartingPlayer()
	require.NoError(t, err)
	assert.Equal(t, game.First, p)

	cfg.Game.StartingPlayer = StartAgent
	p, err = cfg.StartingPlayer()
	require.NoError(t, err)
	assert.Equal(t, game.Second, p)
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Log = LogConfig{Level: "warn", Format: "text", AddSource: true}

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LogLevelWarn, lc.Level)
	assert.Equal(t, "text", lc.Format)
	assert.True(t, lc.AddSource)
}
