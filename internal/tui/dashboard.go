package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
)

// Run launches the dashboard and blocks until the operator quits.
func Run(ctx context.Context, backend queue.Backend, store progress.Store) error {
	model := NewModel(ctx, backend, store)
	program := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}
	return nil
}
