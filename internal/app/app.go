// Package app wires the application together: tracing, database, Genkit,
// and the note, search, tag, enrichment, answer and fetch services built on
// top of them.
//
// Setup builds the dependency graph in order; Close releases resources in
// reverse. Entry points (CLI commands, the HTTP server, the MCP server) call
// Setup once and pick the components they need off the returned App.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/kennis/internal/answer"
	"github.com/koopa0/kennis/internal/config"
	"github.com/koopa0/kennis/internal/embed"
	"github.com/koopa0/kennis/internal/enrich"
	"github.com/koopa0/kennis/internal/fetch"
	"github.com/koopa0/kennis/internal/note"
	"github.com/koopa0/kennis/internal/search"
	"github.com/koopa0/kennis/internal/tag"
)

// App is the application container. All fields are set by Setup.
type App struct {
	Config *config.Config

	// Core infrastructure
	Genkit   *genkit.Genkit
	Embedder embed.Provider // cache-wrapped unless cache_size is 0
	Pool     *pgxpool.Pool

	// Services
	Notes     *note.Store
	Searcher  *search.Searcher
	Suggester *tag.Suggester
	Enricher  *enrich.Enricher
	Generator *answer.Generator
	Fetcher   *fetch.Fetcher

	dbCleanup    func()
	traceCleanup func()
}

// Close gracefully shuts down all resources, in reverse setup order.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.dbCleanup != nil {
		a.dbCleanup()
		slog.Info("database pool closed")
	}

	// Trace export goes down last so the final spans still flush.
	if a.traceCleanup != nil {
		a.traceCleanup()
	}

	return nil
}
