// Package config loads the server configuration. Values are layered in a
// fixed order: built-in defaults, then an optional YAML file, then
// environment variables. Command line flags are applied last by the binary.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/tictacmesh/game"
	"github.com/hupe1980/tictacmesh/logging"
)

// Providers understood by Model.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Starting player values understood by Game.StartingPlayer.
const (
	StartHuman = "human"
	StartAgent = "agent"
)

// Config is the complete server configuration.
type Config struct {
	Environment string       `yaml:"environment"`
	Server      ServerConfig `yaml:"server"`
	Model       ModelConfig  `yaml:"model"`
	Game        GameConfig   `yaml:"game"`
	Log         LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP and socket.io listener.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	SocketPath     string   `yaml:"socket_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ModelConfig selects and configures the decision process.
type ModelConfig struct {
	Provider    string          `yaml:"provider"`
	Temperature float64         `yaml:"temperature"`
	MaxTokens   int64           `yaml:"max_tokens"`
	OpenAI      OpenAIConfig    `yaml:"openai"`
	Anthropic   AnthropicConfig `yaml:"anthropic"`
}

// OpenAIConfig targets any OpenAI compatible endpoint.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	ModelID string `yaml:"model_id"`
	APIKey  string `yaml:"api_key"`
}

// AnthropicConfig targets the Anthropic Messages API.
type AnthropicConfig struct {
	ModelID        string `yaml:"model_id"`
	APIKey         string `yaml:"api_key"`
	ThinkingBudget int64  `yaml:"thinking_budget"`
}

// GameConfig tunes sessions and agent turns.
type GameConfig struct {
	AgentName          string `yaml:"agent_name"`
	StartingPlayer     string `yaml:"starting_player"`
	MaxAgentRuns       int    `yaml:"max_agent_runs"`
	MaxModelCalls      int    `yaml:"max_model_calls"`
	RetainConversation bool   `yaml:"retain_conversation"`
	DisableCommentary  bool   `yaml:"disable_commentary"`
	DisableStreaming   bool   `yaml:"disable_streaming"`
}

// LogConfig configures the logging package.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Port:           8000,
			SocketPath:     "/socket.io",
			AllowedOrigins: []string{"*"},
		},
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.7,
			MaxTokens:   4096,
			OpenAI: OpenAIConfig{
				BaseURL: "http://localhost:1234/v1",
				ModelID: "qwen/qwen3-14b",
				APIKey:  "lm-studio",
			},
			Anthropic: AnthropicConfig{
				ModelID: "claude-3-5-sonnet-20241022",
			},
		},
		Game: GameConfig{
			AgentName:      "TicTacToeMaster",
			StartingPlayer: StartHuman,
			MaxAgentRuns:   5,
			MaxModelCalls:  8,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Merge applies the non-zero values of source onto c.
func (c *Config) Merge(source *Config) {
	if source.Environment != "" {
		c.Environment = source.Environment
	}
	c.Server.Merge(&source.Server)
	c.Model.Merge(&source.Model)
	c.Game.Merge(&source.Game)
	c.Log.Merge(&source.Log)
}

// Merge applies the non-zero values of source onto c.
func (c *ServerConfig) Merge(source *ServerConfig) {
	if source.Host != "" {
		c.Host = source.Host
	}
	if source.Port > 0 {
		c.Port = source.Port
	}
	if source.SocketPath != "" {
		c.SocketPath = source.SocketPath
	}
	if len(source.AllowedOrigins) > 0 {
		c.AllowedOrigins = source.AllowedOrigins
	}
}

// Merge applies the non-zero values of source onto c.
func (c *ModelConfig) Merge(source *ModelConfig) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.Temperature > 0 {
		c.Temperature = source.Temperature
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.OpenAI.BaseURL != "" {
		c.OpenAI.BaseURL = source.OpenAI.BaseURL
	}
	if source.OpenAI.ModelID != "" {
		c.OpenAI.ModelID = source.OpenAI.ModelID
	}
	if source.OpenAI.APIKey != "" {
		c.OpenAI.APIKey = source.OpenAI.APIKey
	}
	if source.Anthropic.ModelID != "" {
		c.Anthropic.ModelID = source.Anthropic.ModelID
	}
	if source.Anthropic.APIKey != "" {
		c.Anthropic.APIKey = source.Anthropic.APIKey
	}
	if source.Anthropic.ThinkingBudget > 0 {
		c.Anthropic.ThinkingBudget = source.Anthropic.ThinkingBudget
	}
}

// Merge applies the non-zero values of source onto c.
func (c *GameConfig) Merge(source *GameConfig) {
	if source.AgentName != "" {
		c.AgentName = source.AgentName
	}
	if source.StartingPlayer != "" {
		c.StartingPlayer = source.StartingPlayer
	}
	if source.MaxAgentRuns > 0 {
		c.MaxAgentRuns = source.MaxAgentRuns
	}
	if source.MaxModelCalls > 0 {
		c.MaxModelCalls = source.MaxModelCalls
	}
	c.RetainConversation = c.RetainConversation || source.RetainConversation
	c.DisableCommentary = c.DisableCommentary || source.DisableCommentary
	c.DisableStreaming = c.DisableStreaming || source.DisableStreaming
}

// Merge applies the non-zero values of source onto c.
func (c *LogConfig) Merge(source *LogConfig) {
	if source.Level != "" {
		c.Level = source.Level
	}
	if source.Format != "" {
		c.Format = source.Format
	}
	c.AddSource = c.AddSource || source.AddSource
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var loaded Config
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.Merge(&loaded)
	}

	env, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.Merge(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv reads the environment variables understood by the server into a
// sparse Config suitable for Merge.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	var c Config
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	atoi := func(key string) (int, error) {
		v := get(key)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		return n, nil
	}

	c.Environment = get("ENVIRONMENT")
	c.Model.Provider = strings.ToLower(get("MODEL_PROVIDER"))
	c.Model.OpenAI.BaseURL = get("OPENAI_API_BASE_URL")
	c.Model.OpenAI.ModelID = get("OPENAI_API_MODEL_ID")
	c.Model.OpenAI.APIKey = get("OPENAI_API_KEY")
	c.Model.Anthropic.APIKey = get("ANTHROPIC_API_KEY")
	c.Model.Anthropic.ModelID = get("ANTHROPIC_MODEL")
	c.Log.Level = get("LOG_LEVEL")
	c.Log.Format = strings.ToLower(get("LOG_FORMAT"))
	c.Game.StartingPlayer = strings.ToLower(get("STARTING_PLAYER"))

	var err error
	if c.Server.Port, err = atoi("API_PORT"); err != nil {
		return nil, err
	}
	if c.Game.MaxAgentRuns, err = atoi("MAX_AGENT_RUNS"); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.SocketPath, "/") {
		errs = append(errs, fmt.Errorf("server.socket_path %q must start with /", c.Server.SocketPath))
	}
	switch c.Model.Provider {
	case ProviderOpenAI:
		if c.Model.OpenAI.ModelID == "" {
			errs = append(errs, errors.New("model.openai.model_id is required"))
		}
	case ProviderAnthropic:
		if c.Model.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("model.anthropic.api_key is required"))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown model.provider %q", c.Model.Provider))
	}
	if _, err := c.StartingPlayer(); err != nil {
		errs = append(errs, err)
	}
	if c.Game.MaxAgentRuns < 1 {
		errs = append(errs, fmt.Errorf("game.max_agent_runs must be at least 1, got %d", c.Game.MaxAgentRuns))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// StartingPlayer maps Game.StartingPlayer to a seat. The human always holds
// game.First.
func (c *Config) StartingPlayer() (game.Player, error) {
	switch c.Game.StartingPlayer {
	case "", StartHuman:
		return game.First, nil
	case StartAgent:
		return game.Second, nil
	}
	return game.First, fmt.Errorf("unknown game.starting_player %q", c.Game.StartingPlayer)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoggerConfig converts the log section.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultLoggerConfig()
	lc.Level, _ = logging.ParseLevel(c.Log.Level)
	lc.Format = c.Log.Format
	lc.AddSource = c.Log.AddSource
	return lc
}
