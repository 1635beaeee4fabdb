package app

import (
	"context"
	"slices"
	"strings"

	"github.com/felixgeelhaar/eventify/internal/auth"
	"github.com/felixgeelhaar/eventify/internal/authz"
	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/mutation"
	"github.com/felixgeelhaar/eventify/internal/query"
)

// Eligibility is what the booking control of an event offers the viewer.
type Eligibility int

const (
	// Bookable offers a booking form.
	Bookable Eligibility = iota
	// Disabled means the event is full; no request is possible.
	Disabled
	// AlreadyBooked offers cancellation instead of booking.
	AlreadyBooked
	// AdminControls offers edit and delete instead of booking.
	AdminControls
)

func (e Eligibility) String() string {
	switch e {
	case Bookable:
		return "bookable"
	case Disabled:
		return "full"
	case AlreadyBooked:
		return "booked"
	case AdminControls:
		return "admin"
	default:
		return "unknown"
	}
}

// EligibilityFor decides the booking control for ev and a session state.
func EligibilityFor(st auth.State, ev domain.Event) Eligibility {
	switch {
	case st.IsAuthenticated() && st.Role() == domain.RoleAdmin:
		return AdminControls
	case st.IsAuthenticated() && ev.UserHasBooked:
		return AlreadyBooked
	case ev.IsFull || ev.AvailableSlots <= 0:
		return Disabled
	default:
		return Bookable
	}
}

// Eligibility decides the booking control for ev and the current viewer.
func (s *Service) Eligibility(ev domain.Event) Eligibility {
	return EligibilityFor(s.resolver.State(), ev)
}

// Contact is the name and email a booking is made under.
type Contact struct {
	Name  string
	Email string
}

// Book books ev. Signed-in viewers book under their account, with contact
// fields defaulting to their profile; guests must supply both. Full and
// already booked events are refused without a request. The public lists are
// refetched on success, never patched locally.
func (s *Service) Book(ctx context.Context, ctl *mutation.Control, ev domain.Event, contact Contact) (*domain.Attendee, error) {
	st := s.resolver.Resolve(ctx)
	if err := refuseBooking(EligibilityFor(st, ev)); err != nil {
		return nil, err
	}

	req := domain.BookingRequest{
		EventID: ev.ID,
		Name:    strings.TrimSpace(contact.Name),
		Email:   strings.TrimSpace(contact.Email),
	}
	if st.IsAuthenticated() {
		id := st.User.ID
		req.UserID = &id
		if req.Name == "" {
			req.Name = st.User.Name
		}
		if req.Email == "" {
			req.Email = st.User.Email
		}
	}
	if err := domain.ValidateContact(req.Name, req.Email); err != nil {
		return nil, apperrors.NewValidationError("", err.Error())
	}

	var booked *domain.Attendee
	err := s.control(ctl).Mutate(ctx, mutation.Mutation{
		Name: "book_event",
		Do: func(ctx context.Context) error {
			a, err := s.api.Book(ctx, req)
			booked = a
			return err
		},
		Invalidate:     []query.Key{{query.RootEvents}, query.EventKey(ev.ID), {query.RootAttendees}},
		Refetch:        []query.Key{{query.RootPublicEvents}},
		SuccessMessage: "Event booked successfully",
		FailureMessage: "Failed to book event",
	})
	return booked, err
}

func refuseBooking(e Eligibility) error {
	switch e {
	case Disabled:
		return apperrors.New(apperrors.ErrCodeConflict, "This event is fully booked")
	case AlreadyBooked:
		return apperrors.New(apperrors.ErrCodeConflict, "You have already booked this event").
			WithSuggestion("Cancel the booking with 'eventify events cancel <id>'")
	case AdminControls:
		return apperrors.New(apperrors.ErrCodeAuthorization, "Administrators manage events and cannot book them")
	default:
		return nil
	}
}

// CancelBooking cancels the viewer's booking. The viewer's public list
// shows the seat released before the request completes and is refetched
// afterwards.
func (s *Service) CancelBooking(ctx context.Context, ctl *mutation.Control, eventID domain.ID) error {
	st, err := s.guard(ctx, authz.RequireAttendee)
	if err != nil {
		return err
	}

	return s.control(ctl).Mutate(ctx, mutation.Mutation{
		Name:   "cancel_booking",
		Target: query.PublicEventsKey(st.User),
		Optimistic: func(old any) any {
			events, _ := old.([]domain.Event)
			out := slices.Clone(events)
			for i := range out {
				if out[i].ID == eventID && out[i].UserHasBooked {
					out[i] = out[i].ReleaseSlot()
				}
			}
			return out
		},
		Do:             func(ctx context.Context) error { return s.api.CancelBooking(ctx, eventID) },
		Invalidate:     []query.Key{{query.RootEvents}, query.EventKey(eventID), {query.RootAttendees}},
		Refetch:        []query.Key{{query.RootPublicEvents}},
		SuccessMessage: "Booking cancelled successfully",
		FailureMessage: "Failed to cancel booking",
	})
}
