package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Storage engine names accepted in configuration.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// App is the application configuration: where state lives, which
// storage engine backs it, provider credentials and logging posture.
type App struct {
	// DataDir is the root for file storage, the sqlite database and
	// memory archives.
	DataDir string `mapstructure:"data_dir"`

	// Storage selects the persistence engine: memory, sqlite or file.
	Storage string `mapstructure:"storage"`

	// TurnLimit is the default turn limit for new worlds; 0 defers to
	// the built-in default.
	TurnLimit int `mapstructure:"turn_limit"`

	// QueueSize is the per-agent dispatch queue depth; 0 defers to the
	// bus default.
	QueueSize int `mapstructure:"queue_size"`

	// WorkingDirectory keys tool approvals and is where side-effecting
	// tools run.
	WorkingDirectory string `mapstructure:"working_directory"`

	Log       Log      `mapstructure:"log"`
	Anthropic Provider `mapstructure:"anthropic"`
	OpenAI    Provider `mapstructure:"openai"`
}

// Log configures logging output.
type Log struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Format is json or text.
	Format string `mapstructure:"format"`
}

// Provider holds one model provider's credentials and default model id.
type Provider struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// EnvPrefix is the environment variable prefix: AGENTWORLD_STORAGE,
// AGENTWORLD_ANTHROPIC_API_KEY and so on.
const EnvPrefix = "AGENTWORLD"

// Load reads the application configuration. Sources in precedence
// order: explicit file at path (optional; missing named files error,
// a missing default file does not), AGENTWORLD_* environment
// variables, built-in defaults.
func Load(path string) (*App, error) {
	v := viper.New()
	v.SetConfigName("agentworld")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.agentworld")

	v.SetDefault("data_dir", ".agentworld")
	v.SetDefault("storage", StorageMemory)
	v.SetDefault("turn_limit", 0)
	v.SetDefault("queue_size", 0)
	v.SetDefault("working_directory", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	// Every key needs a default so AutomaticEnv values survive Unmarshal.
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := app.validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

func (a *App) validate() error {
	switch a.Storage {
	case StorageMemory, StorageSQLite, StorageFile:
	default:
		return fmt.Errorf("unknown storage engine %q (want %s, %s or %s)",
			a.Storage, StorageMemory, StorageSQLite, StorageFile)
	}
	if a.TurnLimit < 0 {
		return fmt.Errorf("turn_limit must not be negative, got %d", a.TurnLimit)
	}
	if a.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", a.QueueSize)
	}
	return nil
}
