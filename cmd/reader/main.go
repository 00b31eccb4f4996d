package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"reader-backend/internal/config"
	"reader-backend/internal/engine"
	"reader-backend/internal/metadata"
	"reader-backend/internal/render"
	"reader-backend/internal/storage"
	"reader-backend/internal/store"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "reader",
		Short:         "Serve reader detail pages from metadata-described containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./app.yaml)")
	root.AddCommand(serveCmd(), seedCmd(), renderCmd())

	if err := root.Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

// app is what every command needs: configuration, a bootstrapped store and
// the loaded registry.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *metadata.Registry
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	log.Printf("Config loaded (port: %d, driver: %s, db: %s)", cfg.Server.Port, cfg.Database.Driver, cfg.Database.Name)

	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}

	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db.DB, reg); err != nil {
		log.Printf("WARN: Failed to load metadata: %v", err)
	}
	return &app{cfg: cfg, store: db, registry: reg}, nil
}

func (a *app) close() { a.store.Close() }

func (a *app) newManager(r *render.Renderer) *engine.Manager {
	callbacks := engine.NewCallbacks()
	return engine.NewManager(engine.Deps{
		Registry:        a.registry,
		Repository:      engine.NewSQLRepository(a.store),
		Files:           storage.NewResolver(a.store),
		URLs:            engine.NewPageResolver(a.registry, a.cfg.Server.BaseURL),
		Renderer:        r,
		Formatter:       engine.NewFormatter(a.cfg.Formats, callbacks),
		Callbacks:       callbacks,
		DefaultLanguage: a.cfg.Languages.Default,
	})
}
