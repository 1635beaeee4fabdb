package app

import (
	"context"
	"io"

	"github.com/felixgeelhaar/eventify/internal/authz"
	"github.com/felixgeelhaar/eventify/internal/calendar"
	"github.com/felixgeelhaar/eventify/internal/domain"
	"github.com/felixgeelhaar/eventify/internal/query"
)

// ExportCalendar writes the viewer's public events as iCalendar to w. With
// bookedOnly only the viewer's bookings are written, which needs a session.
func (s *Service) ExportCalendar(ctx context.Context, w io.Writer, bookedOnly bool) (int, error) {
	if bookedOnly {
		if _, err := s.guard(ctx, authz.RequireAttendee); err != nil {
			return 0, err
		}
	}

	events, err := s.PublicEvents(ctx, query.FetchOptions{})
	if err != nil {
		return 0, err
	}

	selected := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if bookedOnly && !ev.UserHasBooked {
			continue
		}
		selected = append(selected, ev)
	}

	name := "Eventify"
	if bookedOnly {
		name = "Eventify bookings"
	}
	if err := calendar.Write(w, selected, calendar.Options{Name: name, Host: s.host}); err != nil {
		return 0, err
	}
	return len(selected), nil
}
