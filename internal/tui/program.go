package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/eventify/internal/app"
)

// Run starts the browser and blocks until the viewer quits or ctx ends.
// bridge should be the notifier the service's coordinator was built with
// so mutation outcomes reach the toast area.
func Run(ctx context.Context, svc *app.Service, bridge *Bridge, opts ...tea.ProgramOption) error {
	if bridge == nil {
		bridge = NewBridge()
	}
	model := NewModel(ctx, svc, bridge)

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(model, opts...)

	detach := bridge.Attach(p.Send)
	defer detach()
	unsubscribe := svc.Resolver().Subscribe(bridge.Session)
	defer unsubscribe()

	final, err := p.Run()
	if m, ok := final.(Model); ok {
		m.teardown()
	} else {
		model.teardown()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
