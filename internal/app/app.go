// Package app wires the loader, reconciler and workspace into a runnable
// application and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/buildscope/internal/ctxlog"
	"github.com/vk/buildscope/internal/fsutil"
	"github.com/vk/buildscope/internal/graph"
	"github.com/vk/buildscope/internal/project"
	"github.com/vk/buildscope/internal/reconcile"
	"github.com/vk/buildscope/internal/workspace"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	ws     *workspace.Workspace
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and workspace.
func NewApp(outW io.Writer, errW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	logger.Debug("Logger configured successfully.")

	build := func(ctx context.Context, path string) (*graph.Graph, error) {
		snapshot, err := project.Load(ctx, path, &project.Options{Properties: cfg.Properties})
		if err != nil {
			return nil, err
		}
		return reconcile.Build(ctx, snapshot.View, snapshot.Table, &reconcile.Options{
			BaseDiagnostics: snapshot.Diags,
		})
	}

	ws, err := workspace.New(build, cfg.ClosedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workspace: %w", err)
	}
	logger.Debug("Workspace initialized.", "closed_cache_size", cfg.ClosedCacheSize)

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		ws:     ws,
	}, nil
}

// Workspace returns the application's workspace. This is primarily for
// testing.
func (a *App) Workspace() *workspace.Workspace {
	return a.ws
}

// Run analyzes the configured project and writes the report. In watch mode it
// then keeps rebuilding on file changes until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	path, err := resolveProjectPath(a.config.ProjectPath)
	if err != nil {
		return err
	}
	a.config.ProjectPath = path

	g, err := a.ws.Load(ctx, a.config.ProjectPath)
	if err != nil {
		return fmt.Errorf("failed to analyze %s: %w", a.config.ProjectPath, err)
	}

	unused := a.writeReport(g)

	if a.config.Watch {
		if err := a.watch(ctx); err != nil {
			return err
		}
		return nil
	}

	if a.config.FailOnUnused && unused > 0 {
		return fmt.Errorf("%d declaration(s) never took effect", unused)
	}
	return nil
}

// resolveProjectPath accepts either a project file or a directory containing
// exactly one recognized project file.
func resolveProjectPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot access project path: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}

	files, err := fsutil.FindFilesByExtensions(path, fsutil.ProjectExtensions...)
	if err != nil {
		return "", fmt.Errorf("failed to scan %s for project files: %w", path, err)
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("no project file found under %s", path)
	case 1:
		return files[0], nil
	default:
		return "", fmt.Errorf("%d project files found under %s; pass one explicitly", len(files), path)
	}
}
