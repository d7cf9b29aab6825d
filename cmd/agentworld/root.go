package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/yysun/agent-world-sub006/config"
	"github.com/yysun/agent-world-sub006/logging"
	"github.com/yysun/agent-world-sub006/model"
	anthropicmodel "github.com/yysun/agent-world-sub006/model/anthropic"
	openaimodel "github.com/yysun/agent-world-sub006/model/openai"
	"github.com/yysun/agent-world-sub006/storage"
	"github.com/yysun/agent-world-sub006/world"
)

// app bundles the wired collaborators behind every command.
type app struct {
	cfg     *config.App
	manager *world.Manager
	logger  logging.Logger
	close   func()
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "agentworld",
		Short:         "Shared multi-agent conversations with turn limits and tool approvals",
		Long:          "agentworld hosts worlds where several model-backed agents share one conversation,\nrespond to paragraph mentions, back off at the turn limit, and ask a human before\nrunning side-effecting tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to agentworld.yaml (optional)")

	wire := func() (*app, error) { return wireApp(cfgPath) }

	rootCmd.AddCommand(
		newWorldCmd(wire),
		newAgentCmd(wire),
		newChatCmd(wire),
		newApproveCmd(wire),
		newHistoryCmd(wire),
	)
	return rootCmd
}

// wireApp loads configuration and assembles store, models, logger and
// manager. The returned close function releases live buses and store
// handles.
func wireApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	var (
		store   interface{ Close() error }
		closers []func()
	)
	opts := []func(*world.Options){func(o *world.Options) {
		o.Config = world.Config{
			TurnLimit:         cfg.TurnLimit,
			QueueSize:         cfg.QueueSize,
			ArchiveDir:        filepath.Join(cfg.DataDir, "archive"),
			MaxHistoryEntries: world.DefaultMaxHistoryEntries,
		}
		o.Logger = logger
		o.Models = buildModels(cfg)
		o.OnError = func(worldID, agentID string, err error) {
			logger.Error("agent failed", "world_id", worldID, "agent_id", agentID, "error", err)
		}
	}}

	switch cfg.Storage {
	case config.StorageSQLite:
		db, err := storage.OpenSQLite(filepath.Join(cfg.DataDir, "agentworld.db"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		store = db
		opts = append(opts, func(o *world.Options) {
			o.Worlds, o.Agents, o.Chats = db, db, db
		})
	case config.StorageFile:
		fs, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		opts = append(opts, func(o *world.Options) {
			o.Worlds, o.Agents, o.Chats = fs, fs, fs
		})
	default:
		mem := storage.NewInMemoryStore()
		opts = append(opts, func(o *world.Options) {
			o.Worlds, o.Agents, o.Chats = mem, mem, mem
		})
	}

	manager, err := world.NewManager(opts...)
	if err != nil {
		return nil, err
	}
	closers = append(closers, manager.Close)
	if store != nil {
		closers = append(closers, func() { _ = store.Close() })
	}

	return &app{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
		close: func() {
			for _, fn := range closers {
				fn()
			}
		},
	}, nil
}

// buildModels registers one adapter per provider with credentials.
// Agents naming an unregistered provider fall back to the manager's
// default mock, which keeps dry runs possible without keys.
func buildModels(cfg *config.App) map[string]model.Model {
	models := make(map[string]model.Model)
	if cfg.Anthropic.APIKey != "" {
		models["anthropic"] = anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.APIKey = cfg.Anthropic.APIKey
			o.Model = anthropic.Model(cfg.Anthropic.Model)
		})
	}
	if cfg.OpenAI.APIKey != "" {
		client := openaisdk.NewClient(openaiopt.WithAPIKey(cfg.OpenAI.APIKey))
		models["openai"] = openaimodel.NewModelFromClient(&client, func(o *openaimodel.Options) {
			o.Model = cfg.OpenAI.Model
		})
	}
	return models
}
