package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"alpaca_go/internal/infra"
	"alpaca_go/internal/logging"
	"alpaca_go/internal/storage"
)

// Bootstrap orchestrates the startup sequence: environment, config,
// logger, workspace and the optional tick journal.
type Bootstrap struct {
	Config  *infra.Config
	Logger  *zap.Logger
	Journal *storage.Journal // nil when journaling is disabled

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and brings up the shared services.
// configPath may be empty, in which case the standard locations are
// searched.
func (b *Bootstrap) Initialize(configPath string) error {
	// Credentials usually live in a .env next to the binary; a missing
	// file is fine.
	_ = godotenv.Load()

	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	b.Config = cfg

	logger, err := logging.NewLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	b.Logger = logger

	if !cfg.Journal.Enabled {
		return nil
	}

	// The journal is a single-writer sqlite database; the workspace
	// lock keeps a second process from corrupting it.
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", "alpaca")
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	dbPath := filepath.Join(dataDir, cfg.Journal.Path)
	journal, err := storage.OpenJournal(dbPath)
	if err != nil {
		b.release()
		return fmt.Errorf("open journal: %w", err)
	}
	b.Journal = journal

	started := time.Now().UTC()
	if err := journal.UpsertMetadata(context.Background(), "session_started", started.Format(time.RFC3339), started.Unix()); err != nil {
		logger.Warn("failed to stamp journal session", zap.Error(err))
	}

	logger.Info("journal ready", zap.String("path", dbPath))
	return nil
}

// Close releases the journal and the workspace lock.
func (b *Bootstrap) Close() {
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil && b.Logger != nil {
			b.Logger.Warn("journal close failed", zap.Error(err))
		}
		b.Journal = nil
	}
	b.release()
	if b.Logger != nil {
		b.Logger.Sync()
	}
}

func (b *Bootstrap) release() {
	if b.unlock != nil {
		b.unlock()
		b.unlock = nil
	}
}
