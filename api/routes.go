package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes wires the system endpoints and mounts the MCP handler.
// mcpHandler serves the tool facade over streamable HTTP; a nil handler
// leaves the mount out (used by the stdio-only binary's tests).
func SetupRoutes(version, buildTime string, mcpHandler http.Handler) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	systemHandler := &SystemHandler{}

	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")

	if mcpHandler != nil {
		r.PathPrefix("/mcp").Handler(mcpHandler)
	}

	return r
}
