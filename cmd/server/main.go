package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthops/credwatch/api"
	migrations "github.com/healthops/credwatch/db"
	"github.com/healthops/credwatch/internal/config"
	"github.com/healthops/credwatch/internal/db"
	"github.com/healthops/credwatch/internal/engine"
	"github.com/healthops/credwatch/internal/repository/sqlite"
	"github.com/healthops/credwatch/internal/sweeper"
	"github.com/healthops/credwatch/internal/tools"
	"github.com/healthops/credwatch/pkg/npi"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	api.SetLogger(logger)
	npi.SetLogger(logger)

	logger.Info("starting credwatch server", "version", version, "buildTime", buildTime)

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Migrate(ctx, database, migrations.Migrations); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := sqlite.New(database, logger)

	registry, err := npi.NewDefaultClient(cfg.Registry)
	if err != nil {
		log.Fatalf("Failed to create registry client: %v", err)
	}

	eng := engine.New(repo, repo, repo, registry, engine.WithLogger(logger))

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: "credwatch", Version: version}, nil)
	tools.Add(mcpServer, eng)
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpServer }, nil)

	handler := api.SetupRoutes(version, buildTime, mcpHandler)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	sweep := sweeper.New(eng, repo, logger, cfg.Sweeper.Interval, cfg.Sweeper.WindowDays)
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	sweep.Start(sweepCtx)

	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	sweepCancel()
	sweep.Stop()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := registry.Close(); err != nil {
		logger.Error("closing registry client", "err", err)
	}
	if err := database.Close(); err != nil {
		logger.Error("closing db", "err", err)
	}

	logger.Info("server exited")
}
