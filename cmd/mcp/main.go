// Command mcp serves the credwatch tools over stdio for MCP clients that
// spawn the server as a subprocess.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"

	migrations "github.com/healthops/credwatch/db"
	"github.com/healthops/credwatch/internal/config"
	"github.com/healthops/credwatch/internal/db"
	"github.com/healthops/credwatch/internal/engine"
	"github.com/healthops/credwatch/internal/repository/sqlite"
	"github.com/healthops/credwatch/internal/tools"
	"github.com/healthops/credwatch/pkg/npi"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var version = "dev"

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// stdout carries the MCP stream, so logs go to stderr
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	npi.SetLogger(logger)

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(ctx, database, migrations.Migrations); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := sqlite.New(database, logger)

	registry, err := npi.NewDefaultClient(cfg.Registry)
	if err != nil {
		log.Fatalf("Failed to create registry client: %v", err)
	}
	defer registry.Close()

	eng := engine.New(repo, repo, repo, registry, engine.WithLogger(logger))

	server := mcp.NewServer(&mcp.Implementation{Name: "credwatch", Version: version}, nil)
	tools.Add(server, eng)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil &&
		!errors.Is(err, context.Canceled) {
		log.Fatalf("MCP server stopped: %v", err)
	}
}
