package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/forro/internal/shared"
	"github.com/desertthunder/forro/internal/tasks"
	"github.com/desertthunder/forro/internal/ui"
)

// runProgram starts the full-screen program. Replaced in tests.
var runProgram = func(ctx context.Context, m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// TUI launches the interactive pair browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.requireCatalog()
	if err != nil {
		return err
	}

	logPath := cmd.String("log-file")
	if logPath == "" {
		logPath = filepath.Join(r.config.Store.DataDir, "forro-tui.log")
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	fileLogger.SetLevel(r.logger.GetLevel())

	previous := r.logger
	r.logger = fileLogger
	defer func() { r.logger = previous }()

	store, err := r.pairStore(ctx)
	if err != nil {
		return err
	}

	engine := tasks.NewPlaylistEngine(store, catalog, fileLogger)
	if r.lookups != nil {
		engine.SetLookupRecorder(r.lookups)
	}

	model := ui.NewModel(ctx, store, engine, tasks.RunOpts{
		PlaylistID:  r.config.Playlist.ID,
		LookupDelay: r.config.Playlist.LookupDelay(),
	})
	if err := runProgram(ctx, model); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return model.Err()
}
