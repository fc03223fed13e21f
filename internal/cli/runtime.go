package cli

import (
	"fmt"
	"path/filepath"

	"github.com/memsync-oss/memsync/internal/config"
	syncerrors "github.com/memsync-oss/memsync/internal/errors"
	"github.com/memsync-oss/memsync/internal/journal"
	"github.com/memsync-oss/memsync/internal/letta"
	"github.com/memsync-oss/memsync/internal/sync"
	"github.com/memsync-oss/memsync/internal/telemetry"
)

// runtime bundles everything a sync command needs.
type runtime struct {
	cfg     *config.Config
	logger  *telemetry.Logger
	engine  *sync.Engine
	journal *journal.Manager
}

// newRuntime loads config and wires the engine and journal for one command
// invocation. Callers must Close it.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if memoryRoot != "" {
		cfg.Memory.Root = memoryRoot
		cfg.Journal.Path = filepath.Join(cfg.Memory.Root, ".memsync", "journal.db")
	}

	if cfg.Remote.APIKey == "" {
		return nil, syncerrors.New(syncerrors.CodeAPIKeyMissing, "no API key configured").
			WithSuggestion("Set the LETTA_API_KEY environment variable or add api_key to your memsync.yaml remote config")
	}

	logger := telemetry.NewLogger(verbose || cfg.Logging.Level == "debug")
	if cfg.Logging.File != "" {
		if err := logger.WithFile(cfg.Logging.File); err != nil {
			return nil, err
		}
	}

	policy, err := sync.PolicyByName(cfg.Sync.Policy)
	if err != nil {
		return nil, err
	}

	client := letta.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey)
	engine := sync.NewEngine(client, cfg.Memory.Root, policy, logger)

	jm, err := journal.NewManager(cfg.Journal.Driver, cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, engine: engine, journal: jm}, nil
}

func (rt *runtime) Close() {
	_ = rt.journal.Close()
	_ = rt.logger.Close()
}
