package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"reader-backend/internal/admin"
	"reader-backend/internal/auth"
	"reader-backend/internal/engine"
	"reader-backend/internal/instrument"
	"reader-backend/internal/metadata"
	"reader-backend/internal/render"
	"reader-backend/internal/storage"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("file storage: %w", err)
	}

	renderer := render.New(cfg.Templates)
	manager := a.newManager(renderer)

	srv := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	srv.Use(recover.New(recover.Config{EnableStackTrace: true}))
	srv.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	var buffer *instrument.EventBuffer
	if cfg.Instrumentation.Enabled {
		buffer = instrument.NewEventBuffer(a.store, cfg.Instrumentation.BufferSize, cfg.Instrumentation.FlushIntervalMs)
		defer buffer.Stop()
		srv.Use(instrument.Middleware(cfg.Instrumentation, buffer))
	}

	srv.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	auth.RegisterRoutes(srv, auth.NewHandler(a.store, cfg.JWTSecret))
	authMW := auth.Middleware(cfg.JWTSecret)
	adminMW := auth.RequireAdmin()

	adminHandler := admin.NewHandler(a.store, a.registry, manager.Elements())
	adminHandler.OnReload(renderer.Reset)
	admin.RegisterAdminRoutes(srv, adminHandler, authMW, adminMW)
	instrument.RegisterRoutes(srv, instrument.NewEventHandler(a.store), authMW, adminMW)

	engine.RegisterFileRoutes(srv, engine.NewFileHandler(a.store, files, cfg.Storage.MaxFileSize), authMW, adminMW)
	engine.RegisterReaderRoutes(srv, engine.NewHandler(manager))

	reloader := metadata.NewReloadScheduler(a.store.DB, a.registry)
	if err := reloader.Start(cfg.Metadata.ReloadCron); err != nil {
		return fmt.Errorf("schedule metadata reload: %w", err)
	}
	defer reloader.Stop()

	jobs := cron.New()
	if cfg.Instrumentation.Enabled {
		if err := instrument.ScheduleCleanup(jobs, cfg.Instrumentation.CleanupCron, a.store, cfg.Instrumentation.RetentionDays); err != nil {
			return err
		}
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		errc <- srv.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.ShutdownWithContext(shutdownCtx)
	}
}
