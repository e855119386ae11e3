package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"twig/internal/api"
	"twig/internal/config"
	"twig/internal/logging"
	"twig/internal/middleware"
	"twig/internal/parcel"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Open the working tree and its repository
	p, err := parcel.Open(cfg.Repository.Path, cfg, logger.Logger)
	if err != nil {
		logger.Fatal("failed to open repository", zap.Error(err))
	}
	defer p.Close()

	var policy api.AuthorizationPolicy = api.AllowAll{}
	if cfg.API.ReadOnly {
		policy = api.ReadOnly{}
	}

	mux := http.NewServeMux()
	api.NewHandler(p.Repo, policy).Register(mux)

	// Apply middleware, outermost last
	handler := middleware.Chain(
		mux,
		middleware.Logger(logger),
		middleware.RequestID,
		middleware.Recover(logger),
	)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("address", server.Addr),
		zap.String("root", p.Root),
		zap.String("repository", p.Repo.ID()),
		zap.Bool("read_only", cfg.API.ReadOnly),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
