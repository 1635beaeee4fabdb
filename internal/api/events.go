package api

import (
	"context"
	"net/url"

	"github.com/felixgeelhaar/eventify/internal/domain"
)

func eventPath(id domain.ID) string {
	return "/api/events/" + url.PathEscape(id.String())
}

// PublicEvents lists events as seen by the current viewer. Derived fields
// are recomputed when the server omits them.
func (c *Client) PublicEvents(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	err := c.do(ctx, request{
		method: "GET",
		route:  "/api/events/public",
		path:   "/api/events/public",
	}, &events)
	if err != nil {
		return nil, err
	}
	return domain.NormalizeEvents(events), nil
}

// Events lists every event with its attendees. Admin only.
func (c *Client) Events(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	err := c.do(ctx, request{
		method: "GET",
		route:  "/api/events",
		path:   "/api/events",
	}, &events)
	if err != nil {
		return nil, err
	}
	return domain.NormalizeEvents(events), nil
}

// Event fetches a single event.
func (c *Client) Event(ctx context.Context, id domain.ID) (*domain.Event, error) {
	var event domain.Event
	err := c.do(ctx, request{
		method: "GET",
		route:  "/api/events/{id}",
		path:   eventPath(id),
	}, &event)
	if err != nil {
		return nil, err
	}
	event.Normalize()
	return &event, nil
}

// CreateEvent creates an event.
func (c *Client) CreateEvent(ctx context.Context, in domain.EventInput) (*domain.Event, error) {
	var event domain.Event
	err := c.do(ctx, request{
		method: "POST",
		route:  "/api/events",
		path:   "/api/events",
		body:   in,
	}, &event)
	if err != nil {
		return nil, err
	}
	event.Normalize()
	return &event, nil
}

// UpdateEvent replaces an event's editable fields.
func (c *Client) UpdateEvent(ctx context.Context, id domain.ID, in domain.EventInput) (*domain.Event, error) {
	var event domain.Event
	err := c.do(ctx, request{
		method: "PUT",
		route:  "/api/events/{id}",
		path:   eventPath(id),
		body:   in,
	}, &event)
	if err != nil {
		return nil, err
	}
	event.Normalize()
	return &event, nil
}

// DeleteEvent deletes an event.
func (c *Client) DeleteEvent(ctx context.Context, id domain.ID) error {
	return c.do(ctx, request{
		method: "DELETE",
		route:  "/api/events/{id}",
		path:   eventPath(id),
	}, nil)
}
