package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/storyforge/internal/auth"
	"github.com/agenthands/storyforge/internal/config"
	"github.com/agenthands/storyforge/internal/core"
	"github.com/agenthands/storyforge/internal/export"
	"github.com/agenthands/storyforge/internal/llm"
	"github.com/agenthands/storyforge/internal/server"
	"github.com/agenthands/storyforge/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := newLogger(cfg.Server)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var gen core.Generator
	if sel, err := llm.Select(cfg.LLM); err != nil {
		logger.Warn("generation disabled", "reason", err)
	} else {
		client, err := llm.New(ctx, sel, cfg.LLM.RequestsPerMinute)
		if err != nil {
			return fmt.Errorf("init %s provider: %w", sel.Provider, err)
		}
		defer client.Close()
		gen = client
		logger.Info("generation provider selected", "provider", sel.Provider, "model", sel.Model)
	}

	engine := core.NewEngine(st, gen, llm.Options{
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	}, cfg.LLMTimeout(), logger)

	authSvc := auth.New(st, cfg.Auth, cfg.JWTExpiry(), logger)
	if err := authSvc.Ready(); err != nil {
		logger.Warn("auth routes will return 503", "reason", err)
	}

	limiter := server.NewRateLimiter(cfg.Server.RateLimitPerMin, cfg.RateLimitWindow())

	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.NewServer(engine, authSvc, limiter, logger).
		WithExportOptions(export.Options{PDFFontPath: cfg.Export.PDFFontPath})
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           srv.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// in-flight chapters get their full generation timeout to commit
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout()+15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
