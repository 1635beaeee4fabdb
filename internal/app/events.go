package app

import (
	"context"
	"slices"

	"github.com/felixgeelhaar/eventify/internal/authz"
	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/mutation"
	"github.com/felixgeelhaar/eventify/internal/query"
)

// EventList names a cached event collection.
type EventList int

const (
	// PublicList is the viewer-keyed public list.
	PublicList EventList = iota
	// AdminList is the admin list with attendees.
	AdminList
)

// PublicEventsKey returns the cache key of the public list for the current
// viewer.
func (s *Service) PublicEventsKey() query.Key {
	return query.PublicEventsKey(s.resolver.State().User)
}

func (s *Service) listKey(list EventList) query.Key {
	if list == AdminList {
		return query.EventsKey()
	}
	return s.PublicEventsKey()
}

func (s *Service) publicLoader(ctx context.Context) ([]domain.Event, error) {
	events, err := s.api.PublicEvents(ctx)
	return events, s.observe(err)
}

func (s *Service) adminLoader(ctx context.Context) ([]domain.Event, error) {
	events, err := s.api.Events(ctx)
	return events, s.observe(err)
}

// PublicEvents lists events as seen by the current viewer.
func (s *Service) PublicEvents(ctx context.Context, opts query.FetchOptions) ([]domain.Event, error) {
	st := s.resolver.Resolve(ctx)
	return query.FetchAs(ctx, s.cache, query.PublicEventsKey(st.User), s.publicLoader, opts)
}

// AdminEvents lists every event with attendees. Admin only.
func (s *Service) AdminEvents(ctx context.Context, opts query.FetchOptions) ([]domain.Event, error) {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return nil, err
	}
	return query.FetchAs(ctx, s.cache, query.EventsKey(), s.adminLoader, opts)
}

// Event fetches one event.
func (s *Service) Event(ctx context.Context, id domain.ID, opts query.FetchOptions) (domain.Event, error) {
	s.resolver.Resolve(ctx)
	return query.FetchAs(ctx, s.cache, query.EventKey(id), func(ctx context.Context) (domain.Event, error) {
		ev, err := s.api.Event(ctx, id)
		if err != nil {
			return domain.Event{}, s.observe(err)
		}
		return *ev, nil
	}, opts)
}

// Loaders returns cache loaders for the event lists so a view can
// subscribe with background refetch.
func (s *Service) Loaders() (public, admin query.Loader) {
	public = func(ctx context.Context) (any, error) { return s.publicLoader(ctx) }
	admin = func(ctx context.Context) (any, error) { return s.adminLoader(ctx) }
	return public, admin
}

var eventDependents = []query.Key{{query.RootEvents}, {query.RootPublicEvents}, {query.RootEvent}}

// CreateEvent creates an event. Creation is never optimistic.
func (s *Service) CreateEvent(ctx context.Context, ctl *mutation.Control, in domain.EventInput) (*domain.Event, error) {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperrors.NewValidationError("", err.Error())
	}

	var created *domain.Event
	err := s.control(ctl).Mutate(ctx, mutation.Mutation{
		Name: "create_event",
		Do: func(ctx context.Context) error {
			ev, err := s.api.CreateEvent(ctx, in)
			created = ev
			return err
		},
		Invalidate:     eventDependents,
		SuccessMessage: "Event created successfully",
		FailureMessage: "Failed to create event",
	})
	return created, err
}

// UpdateEvent edits an event. Updates are never optimistic.
func (s *Service) UpdateEvent(ctx context.Context, ctl *mutation.Control, id domain.ID, in domain.EventInput) (*domain.Event, error) {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperrors.NewValidationError("", err.Error())
	}

	var updated *domain.Event
	err := s.control(ctl).Mutate(ctx, mutation.Mutation{
		Name: "update_event",
		Do: func(ctx context.Context) error {
			ev, err := s.api.UpdateEvent(ctx, id, in)
			updated = ev
			return err
		},
		Invalidate:     eventDependents,
		SuccessMessage: "Event updated successfully",
		FailureMessage: "Failed to update event",
	})
	return updated, err
}

// DeleteEvent deletes an event, removing it from list optimistically.
func (s *Service) DeleteEvent(ctx context.Context, ctl *mutation.Control, id domain.ID, list EventList) error {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return err
	}

	return s.control(ctl).Mutate(ctx, mutation.Mutation{
		Name:   "delete_event",
		Target: s.listKey(list),
		Optimistic: func(old any) any {
			events, _ := old.([]domain.Event)
			return slices.DeleteFunc(slices.Clone(events), func(e domain.Event) bool { return e.ID == id })
		},
		Do:             func(ctx context.Context) error { return s.api.DeleteEvent(ctx, id) },
		Invalidate:     slices.Concat(eventDependents, []query.Key{{query.RootAttendees}}),
		SuccessMessage: "Event deleted successfully",
		FailureMessage: "Failed to delete event",
	})
}

func (s *Service) control(ctl *mutation.Control) *mutation.Control {
	if ctl == nil {
		return s.coord.Control()
	}
	return ctl
}
