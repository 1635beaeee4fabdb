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

var attendeeDependents = []query.Key{{query.RootAttendees}, {query.RootEvents}, {query.RootPublicEvents}, {query.RootEvent}}

// Attendees lists the attendees of one event. Admin only.
func (s *Service) Attendees(ctx context.Context, eventID domain.ID, opts query.FetchOptions) ([]domain.Attendee, error) {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return nil, err
	}
	return query.FetchAs(ctx, s.cache, query.AttendeesKey(eventID), func(ctx context.Context) ([]domain.Attendee, error) {
		list, err := s.api.AttendeesByEvent(ctx, eventID)
		return list, s.observe(err)
	}, opts)
}

// AllAttendees lists every attendee. Admin only.
func (s *Service) AllAttendees(ctx context.Context, opts query.FetchOptions) ([]domain.Attendee, error) {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return nil, err
	}
	return query.FetchAs(ctx, s.cache, query.AttendeesKey(""), func(ctx context.Context) ([]domain.Attendee, error) {
		list, err := s.api.AllAttendees(ctx)
		return list, s.observe(err)
	}, opts)
}

func validateAttendee(in domain.AttendeeInput) error {
	if in.EventID == "" {
		return apperrors.NewValidationError("eventId", "is required")
	}
	if err := domain.ValidateContact(in.Name, in.Email); err != nil {
		return apperrors.NewValidationError("", err.Error())
	}
	return nil
}

// CreateAttendee adds an attendee to an event. Admin only.
func (s *Service) CreateAttendee(ctx context.Context, ctl *mutation.Control, in domain.AttendeeInput) (*domain.Attendee, error) {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return nil, err
	}
	if err := validateAttendee(in); err != nil {
		return nil, err
	}

	var created *domain.Attendee
	err := s.control(ctl).Mutate(ctx, mutation.Mutation{
		Name: "create_attendee",
		Do: func(ctx context.Context) error {
			a, err := s.api.CreateAttendee(ctx, in)
			created = a
			return err
		},
		Invalidate:     attendeeDependents,
		SuccessMessage: "Attendee added successfully",
		FailureMessage: "Failed to add attendee",
	})
	return created, err
}

// UpdateAttendee edits an attendee. Admin only.
func (s *Service) UpdateAttendee(ctx context.Context, ctl *mutation.Control, id domain.ID, in domain.AttendeeInput) (*domain.Attendee, error) {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return nil, err
	}
	if err := validateAttendee(in); err != nil {
		return nil, err
	}

	var updated *domain.Attendee
	err := s.control(ctl).Mutate(ctx, mutation.Mutation{
		Name: "update_attendee",
		Do: func(ctx context.Context) error {
			a, err := s.api.UpdateAttendee(ctx, id, in)
			updated = a
			return err
		},
		Invalidate:     attendeeDependents,
		SuccessMessage: "Attendee updated successfully",
		FailureMessage: "Failed to update attendee",
	})
	return updated, err
}

// DeleteAttendee removes an attendee, dropping it from its event's list
// optimistically. Admin only.
func (s *Service) DeleteAttendee(ctx context.Context, ctl *mutation.Control, a domain.Attendee) error {
	if _, err := s.guard(ctx, authz.RequireAdmin); err != nil {
		return err
	}

	return s.control(ctl).Mutate(ctx, mutation.Mutation{
		Name:   "delete_attendee",
		Target: query.AttendeesKey(a.EventID),
		Optimistic: func(old any) any {
			list, _ := old.([]domain.Attendee)
			return slices.DeleteFunc(slices.Clone(list), func(x domain.Attendee) bool { return x.ID == a.ID })
		},
		Do:             func(ctx context.Context) error { return s.api.DeleteAttendee(ctx, a.ID) },
		Invalidate:     attendeeDependents,
		SuccessMessage: "Attendee removed successfully",
		FailureMessage: "Failed to remove attendee",
	})
}
