package api

import (
	"context"
	"net/url"

	"github.com/felixgeelhaar/eventify/internal/domain"
)

// AllAttendees lists every attendee. Admin only.
func (c *Client) AllAttendees(ctx context.Context) ([]domain.Attendee, error) {
	var attendees []domain.Attendee
	err := c.do(ctx, request{
		method: "GET",
		route:  "/api/attendees",
		path:   "/api/attendees",
	}, &attendees)
	return attendees, err
}

// AttendeesByEvent lists the attendees of one event. Admin only.
func (c *Client) AttendeesByEvent(ctx context.Context, eventID domain.ID) ([]domain.Attendee, error) {
	var attendees []domain.Attendee
	err := c.do(ctx, request{
		method: "GET",
		route:  "/api/attendees/event/{eventId}",
		path:   "/api/attendees/event/" + url.PathEscape(eventID.String()),
	}, &attendees)
	return attendees, err
}

// Book books a seat. A request without UserID is a guest booking.
func (c *Client) Book(ctx context.Context, req domain.BookingRequest) (*domain.Attendee, error) {
	var attendee domain.Attendee
	err := c.do(ctx, request{
		method: "POST",
		route:  "/api/attendees/book",
		path:   "/api/attendees/book",
		body:   req,
	}, &attendee)
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}

// CancelBooking cancels the signed-in viewer's booking for an event.
func (c *Client) CancelBooking(ctx context.Context, eventID domain.ID) error {
	return c.do(ctx, request{
		method: "DELETE",
		route:  "/api/attendees/cancel/{eventId}",
		path:   "/api/attendees/cancel/" + url.PathEscape(eventID.String()),
	}, nil)
}

// CreateAttendee registers an attendee on behalf of someone. Admin only.
func (c *Client) CreateAttendee(ctx context.Context, in domain.AttendeeInput) (*domain.Attendee, error) {
	var attendee domain.Attendee
	err := c.do(ctx, request{
		method: "POST",
		route:  "/api/attendees",
		path:   "/api/attendees",
		body:   in,
	}, &attendee)
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}

// UpdateAttendee edits an attendee. Admin only.
func (c *Client) UpdateAttendee(ctx context.Context, id domain.ID, in domain.AttendeeInput) (*domain.Attendee, error) {
	var attendee domain.Attendee
	err := c.do(ctx, request{
		method: "PUT",
		route:  "/api/attendees/{id}",
		path:   "/api/attendees/" + url.PathEscape(id.String()),
		body:   in,
	}, &attendee)
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}

// DeleteAttendee removes an attendee. Admin only.
func (c *Client) DeleteAttendee(ctx context.Context, id domain.ID) error {
	return c.do(ctx, request{
		method: "DELETE",
		route:  "/api/attendees/{id}",
		path:   "/api/attendees/" + url.PathEscape(id.String()),
	}, nil)
}
