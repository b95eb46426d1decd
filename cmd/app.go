package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/billing"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/ingest"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/store"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// app is everything a command needs once storage is open.
type app struct {
	cfg      *config.MainConfig
	logger   *zap.Logger
	store    *store.Store
	billing  *billing.Service
	pipeline *ingest.Pipeline
	profiles config.Profiles
	synonyms columnmap.SynonymTable
}

// openApp opens the configured backend, replays any journal and loads the
// billing data.
func openApp(ctx context.Context) (*app, error) {
	cfg := appConfig
	if err := config.EnsureDirs(cfg); err != nil {
		return nil, err
	}

	synonyms, profiles, err := loadMappingConfig(cfg)
	if err != nil {
		return nil, err
	}

	backend, journalPath, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, backend, journalPath, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}

	svc, err := billing.Open(ctx, st, billing.Options{
		Logger:          logger,
		DefaultSettings: types.Settings{InputFolder: cfg.InputDir, FilenameMode: types.FilenameCarrierCycle},
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		billing: svc,
		pipeline: ingest.New(svc, ingest.Options{
			Config:   cfg,
			Profiles: profiles,
			Synonyms: synonyms,
			Logger:   logger,
		}),
		profiles: profiles,
		synonyms: synonyms,
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

// openBackend picks the storage backend. Only file-backed stores get a
// journal; PostgreSQL commits in one transaction.
func openBackend(ctx context.Context, cfg *config.MainConfig) (store.Backend, string, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pg, err := store.ConnectPostgres(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, "", err
		}
		return pg, "", nil
	case config.BackendMemory:
		logger.Warn("memory backend selected; nothing will be persisted")
		return store.NewMemoryBackend(), "", nil
	default:
		b, err := store.NewXLSXBackend(cfg.DataDir)
		if err != nil {
			return nil, "", err
		}
		for table, file := range billing.LegacyFiles {
			b.AddLegacyName(table, file)
		}
		return b, cfg.JournalPath(), nil
	}
}

// loadMappingConfig loads the synonym table and carrier profiles.
func loadMappingConfig(cfg *config.MainConfig) (columnmap.SynonymTable, config.Profiles, error) {
	synonyms := columnmap.DefaultSynonyms()
	if cfg.SynonymsFile != "" {
		loaded, err := columnmap.LoadSynonyms(cfg.SynonymsFile)
		if err != nil {
			return nil, nil, err
		}
		synonyms = loaded
	}

	profiles, err := config.LoadProfiles(cfg.ProfilesDir)
	if err != nil {
		return nil, nil, err
	}
	return synonyms, profiles, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// outputPath resolves --out: empty uses name inside the output directory.
func outputPath(out, name string) string {
	if out == "" {
		return filepath.Join(appConfig.OutputDir, name)
	}
	return out
}

// writeOutput creates path and hands it to write. A failed write removes the
// partial file.
func writeOutput(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// printResult reports a billing result and turns a failure into the command
// error.
func printResult(w io.Writer, res billing.Result) error {
	if !res.Success {
		return res.Error
	}
	fmt.Fprintln(w, res.Message)
	return nil
}
