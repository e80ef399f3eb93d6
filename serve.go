package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"audioedit/internal/api"
	"audioedit/internal/redis"
	"audioedit/internal/service/editor"
	"audioedit/internal/storage"
	"audioedit/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP upload and processing service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		dbType := os.Getenv("AUDIOEDIT_DB")
		if dbType == "" {
			dbType = "sqlite3"
		}
		log.Info().Str("db", dbType).Msg("opening database")
		db, err := storage.Open(dbType, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, dbType); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		progressStore, err := redis.Connect(cfg.Redis, time.Duration(cfg.BasicConfig.ResultTTL)*time.Minute)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer progressStore.Close()

		processor, err := newProcessor(cfg)
		if err != nil {
			return err
		}
		tempTTL := time.Duration(cfg.BasicConfig.TempFileTTL) * time.Minute
		editorService, err := editor.NewService(db, processor, cfg.BasicConfig.FileBaseDir, tempTTL)
		if err != nil {
			return fmt.Errorf("init editor service: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		editorService.StartTempFileCleaner(ctx, time.Duration(cfg.BasicConfig.TempCleanInterval)*time.Minute)

		manager := worker.NewManager(editorService, worker.DispatcherConfig{
			MinWorkers:        cfg.BasicConfig.MinWorkers,
			MaxWorkers:        cfg.BasicConfig.MaxWorkers,
			QueueSize:         cfg.BasicConfig.QueueSize,
			WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
			ResultTTL:         time.Duration(cfg.BasicConfig.ResultTTL) * time.Minute,
		}, progressStore)
		defer manager.Close()

		if ok, v := processor.CheckTool(ctx); ok {
			log.Info().Str("ffmpeg", v).Msg("ffmpeg available")
		} else {
			log.Warn().Str("ffmpeg", v).Msg("ffmpeg unavailable, processing requests will fail")
		}

		handlers := api.NewHandler(editorService, manager, cfg.BasicConfig.MaxUploadMB<<20)
		router := gin.Default()
		handlers.RegisterRoutes(router)

		srv := &http.Server{Addr: cfg.BasicConfig.ServerAddress, Handler: router}
		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stopped: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
