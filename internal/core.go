package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/doorlink/internal/analysis"
	"github.com/starford/doorlink/internal/gateway"
	"github.com/starford/doorlink/internal/graph"
	"github.com/starford/doorlink/internal/index"
	"github.com/starford/doorlink/internal/itemservice"
	"github.com/starford/doorlink/internal/reference"
	"github.com/starford/doorlink/internal/storage"
	"github.com/starford/doorlink/internal/tree"
)

var errConfigRequired = errors.New("config is required")

// Core is the set of components every entry point shares.
type Core struct {
	Service  *itemservice.Service
	Repo     *tree.Repo
	Resolver *graph.Resolver
	Locator  *reference.Locator
	DB       *index.DB
	Logger   *slog.Logger
}

// NewLogger builds the JSON logger used by every entry point.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// Open builds the tree, resolver and locator for cfg. withIndex also opens the
// SQLite search index; one-shot CLI queries skip it.
func Open(cfg *Config, logger *slog.Logger, withIndex bool) (*Core, error) {
	if cfg.Project.Root == "" {
		return nil, tree.ErrNoRoot
	}
	store, err := storage.NewFS(cfg.Project.Root, cfg.Project.Ignore...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &Core{Logger: logger}
	c.Repo = tree.NewRepo(store, logger)
	c.Resolver = graph.NewResolver(c.Repo, logger)
	c.Locator = reference.NewLocator(store.Root(), logger, cfg.Project.Ignore...)

	if withIndex {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		c.DB = db
	}
	c.Service = itemservice.NewService(c.Repo, c.Resolver, c.Locator, c.DB, logger)
	return c, nil
}

// Close releases the search index, if open.
func (c *Core) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// Gateway returns the backend gateway buffer analysis queries go through.
func (c *Core) Gateway(cfg BackendConfig) (gateway.Gateway, error) {
	if cfg.Mode == BackendModeProcess {
		return gateway.NewProcess(cfg.Command, c.Repo.Root(), cfg.Timeout, c.Logger)
	}
	return gateway.NewLocal(c.Repo, c.Resolver, c.Logger), nil
}

// Analyzer builds the buffer analysis pipeline on top of gw.
func (c *Core) Analyzer(gw gateway.Gateway) *analysis.Analyzer {
	return analysis.NewAnalyzer(c.Locator, gw, c.Repo, c.Logger)
}
