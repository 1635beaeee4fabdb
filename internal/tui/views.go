package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/eventify/internal/app"
	"github.com/felixgeelhaar/eventify/internal/authz"
	"github.com/felixgeelhaar/eventify/internal/domain"
	"github.com/felixgeelhaar/eventify/internal/mutation"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

type eventItem struct {
	ev     domain.Event
	status string
}

func (i eventItem) Title() string { return i.ev.Title }

func (i eventItem) Description() string {
	parts := []string{i.ev.Date.Local().Format(displayLayout)}
	if i.ev.Location != "" {
		parts = append(parts, i.ev.Location)
	}
	parts = append(parts, ux.Seats(i.ev)+" seats", i.status)
	return strings.Join(parts, " · ")
}

func (i eventItem) FilterValue() string { return i.ev.Title + " " + i.ev.Location }

type attendeeItem struct {
	a domain.Attendee
}

func (i attendeeItem) Title() string { return i.a.Name }

func (i attendeeItem) Description() string {
	if i.a.UserID == nil {
		return i.a.Email + " · guest"
	}
	return i.a.Email
}

func (i attendeeItem) FilterValue() string { return i.a.Name + " " + i.a.Email }

// items builds the list content of the current screen.
func (m Model) items() []list.Item {
	var out []list.Item
	switch m.view {
	case ViewEvents:
		for _, ev := range m.events {
			out = append(out, eventItem{ev: ev, status: m.statusOf(ev)})
		}
	case ViewMine:
		for _, ev := range m.events {
			if ev.UserHasBooked {
				out = append(out, eventItem{ev: ev, status: "booked"})
			}
		}
	case ViewAdmin:
		for _, ev := range m.admin {
			out = append(out, eventItem{ev: ev, status: fmt.Sprintf("%d attendees", ev.AttendeeCount)})
		}
	case ViewAttendees:
		for _, a := range m.attendees {
			out = append(out, attendeeItem{a: a})
		}
	}
	return out
}

func (m Model) statusOf(ev domain.Event) string {
	switch app.EligibilityFor(m.state, ev) {
	case app.AlreadyBooked:
		return "booked"
	case app.Disabled:
		return "full"
	default:
		return "open"
	}
}

// refreshList replaces the list content and title for the current screen.
func (m *Model) refreshList() tea.Cmd {
	m.list.Title = m.view.String()
	if m.view == ViewAttendees {
		m.list.Title = "Attendees of " + m.attendeesOf.Title
	}
	if m.view == ViewDetail {
		return nil
	}
	items := m.items()
	if items == nil {
		items = []list.Item{}
	}
	return m.list.SetItems(items)
}

// View renders the current screen (required by Bubble Tea)
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.form != nil {
		b.WriteString(m.styles.Border.Render(m.form.View()))
	} else {
		b.WriteString(m.renderBody())
	}
	b.WriteString("\n")

	if toasts := m.renderToasts(); toasts != "" {
		b.WriteString("\n")
		b.WriteString(toasts)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.styles.Title.UnsetMarginBottom().Render("Eventify")
	var badge string
	switch {
	case !m.state.Status.Settled():
		badge = m.styles.Badge.Render("checking session")
	case m.state.IsAuthenticated():
		badge = m.styles.Highlighted.Render(fmt.Sprintf("%s (%s)", m.state.User.Name, m.state.User.Role))
	default:
		badge = m.styles.Badge.Render("guest")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", badge)
}

func (m Model) renderBody() string {
	if req, protected := m.view.requirement(); protected {
		switch authz.DecideState(m.state, req) {
		case authz.RenderLoading:
			return m.spinner.View() + " Checking session..."
		case authz.RedirectLogin:
			return m.styles.Warning.Render("Log in to continue") + m.styles.Muted.Render("  (press l)")
		case authz.RenderDenied:
			return m.styles.Error.Render(fmt.Sprintf("Access denied: only %s users can access this area", req))
		}
	}

	if m.loadErr != nil && len(m.list.Items()) == 0 && m.view != ViewDetail {
		return m.styles.Error.Render("Failed to load: "+ux.EnhanceError(m.loadErr).Error()) +
			"\n" + m.styles.Muted.Render("press r to retry")
	}
	if m.loading {
		return m.spinner.View() + " Loading " + strings.ToLower(m.view.String()) + "..."
	}

	if m.view == ViewDetail {
		return m.renderDetail()
	}
	if len(m.list.Items()) == 0 {
		return m.styles.Muted.Render(m.emptyText())
	}
	return m.list.View()
}

func (m Model) emptyText() string {
	switch m.view {
	case ViewMine:
		return "You have not booked any events yet"
	case ViewAttendees:
		return "Nobody has booked this event yet"
	default:
		return "No upcoming events"
	}
}

func (m Model) renderDetail() string {
	ev, ok := m.current()
	if !ok {
		return m.styles.Muted.Render("This event no longer exists") + "\n" + m.styles.Muted.Render("press esc to go back")
	}

	var b strings.Builder
	b.WriteString(m.styles.Status.Render(ev.Title))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Muted.Render("When:     ") + ev.Date.Local().Format(displayLayout) + "\n")
	if ev.Location != "" {
		b.WriteString(m.styles.Muted.Render("Where:    ") + ev.Location + "\n")
	}
	b.WriteString(m.styles.Muted.Render("Seats:    ") + ux.Seats(ev) + "\n")
	if ev.Description != "" {
		b.WriteString("\n" + ev.Description + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderAction(ev))

	return m.styles.Border.Render(b.String())
}

// renderAction shows the booking control the viewer is offered.
func (m Model) renderAction(ev domain.Event) string {
	switch app.EligibilityFor(m.state, ev) {
	case app.AdminControls:
		return m.styles.Highlighted.Render("Admin") + m.styles.Muted.Render("  e edit · d delete · t attendees")
	case app.AlreadyBooked:
		return m.styles.Success.Render("✓ You're booked") + m.styles.Muted.Render("  c cancel booking")
	case app.Disabled:
		return m.styles.Muted.Render("Event Full")
	default:
		if m.ctl.Pending() {
			return m.spinner.View() + " Booking..."
		}
		return m.styles.Highlighted.Render("Book Now") + m.styles.Muted.Render("  press b")
	}
}

func (m Model) renderToasts() string {
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		style := m.styles.Toast
		switch t.level {
		case mutation.LevelError:
			style = style.BorderForeground(lipgloss.Color("196"))
		case mutation.LevelSuccess:
			style = style.BorderForeground(lipgloss.Color("46"))
		default:
			style = style.BorderForeground(lipgloss.Color("86"))
		}
		lines = append(lines, style.Render(t.text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
