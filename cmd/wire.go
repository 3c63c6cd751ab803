package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/lingoflow/internal/conversation"
	"github.com/abhisek/lingoflow/internal/generation"
	"github.com/abhisek/lingoflow/internal/llm"
	"github.com/abhisek/lingoflow/internal/logger"
	"github.com/abhisek/lingoflow/internal/scenario"
	"github.com/abhisek/lingoflow/internal/store"
)

// services holds every service built from the resolved configuration.
type services struct {
	log           *zap.Logger
	store         *store.Store
	generation    generation.Client
	catalog       *scenario.Catalog
	replenisher   *scenario.Replenisher
	conversations *conversation.Service
}

// buildOpts tweaks how much of the services are started.
type buildOpts struct {
	// quiet discards logs unless a log file is configured; the TUI owns the terminal.
	quiet bool
	// replenish starts the background scenario replenisher.
	replenish bool
}

// build opens the store and wires the generation stack, the catalog and
// the conversation service. Close releases everything.
func build(cmd *cobra.Command, opts buildOpts) (*services, error) {
	log, err := newLogger(opts.quiet)
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Debug("store opened", zap.String("path", dbPath))

	assets, err := scenario.NewAssets(cfg.ClipartDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load clipart: %w", err)
	}

	provider, err := llm.NewProvider(cmd.Context(), cfg.LLM, st.EventRepo(), log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("generation backend: %w", err)
	}
	genCfg := generation.DefaultConfig()
	genCfg.Cliparts = assets.Names()
	gen := generation.NewLLMClient(provider, genCfg, log)

	rt := &services{log: log, store: st, generation: gen}
	rt.catalog = scenario.NewCatalog(st.ScenarioRepo(), st.SettingsRepo(), gen, assets, cfg.ScenarioCount, log)

	var dispatcher conversation.Dispatcher
	if opts.replenish {
		rt.replenisher = scenario.NewReplenisher(rt.catalog, cfg.ReplenishQueue, cfg.ReplenishInterval, log)
		dispatcher = rt.replenisher
	}
	manager := conversation.NewManager(st.ConversationRepo(), log)
	rt.conversations = conversation.NewService(st.SettingsRepo(), rt.catalog, manager, gen, dispatcher, log)

	log.Info("services ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", provider.ModelID()),
		zap.Bool("replenish", opts.replenish))
	return rt, nil
}

// Close stops background work, then closes the store.
func (rt *services) Close() {
	if rt.replenisher != nil {
		rt.replenisher.Close()
	}
	if err := rt.store.Close(); err != nil {
		rt.log.Warn("close store", zap.Error(err))
	}
	_ = rt.log.Sync()
}

func newLogger(quiet bool) (*zap.Logger, error) {
	if quiet && cfg.LogFile == "" {
		return zap.NewNop(), nil
	}
	return logger.New(logger.Config{Level: cfg.LogLevel, OutputPath: cfg.LogFile})
}

// openStore opens only the database, for commands that never call the
// generation backend.
func openStore() (*store.Store, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
