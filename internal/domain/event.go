package domain

import (
	"fmt"
	"strings"
	"time"
)

// Event is an event record as listed by the API. The public listing
// carries AttendeeCount and UserHasBooked; the admin listing carries the
// Attendees array instead.
type Event struct {
	ID             ID         `json:"id" yaml:"id"`
	Title          string     `json:"title" yaml:"title"`
	Description    string     `json:"description" yaml:"description"`
	Date           time.Time  `json:"date" yaml:"date"`
	Location       string     `json:"location" yaml:"location"`
	Capacity       int        `json:"capacity" yaml:"capacity"`
	AttendeeCount  int        `json:"attendeeCount" yaml:"attendee_count"`
	AvailableSlots int        `json:"availableSlots" yaml:"available_slots"`
	IsFull         bool       `json:"isFull" yaml:"is_full"`
	UserHasBooked  bool       `json:"userHasBooked" yaml:"user_has_booked"`
	Attendees      []Attendee `json:"attendees,omitempty" yaml:"attendees,omitempty"`
}

// Normalize recomputes the derived fields from Capacity and the attendee
// count so that AvailableSlots = Capacity - AttendeeCount and
// IsFull = AvailableSlots <= 0 hold.
func (e *Event) Normalize() {
	if e.AttendeeCount == 0 && len(e.Attendees) > 0 {
		e.AttendeeCount = len(e.Attendees)
	}
	e.derive()
}

// derive clamps AttendeeCount and recomputes the derived fields from it
// alone.
func (e *Event) derive() {
	if e.AttendeeCount < 0 {
		e.AttendeeCount = 0
	}
	if e.AttendeeCount > e.Capacity && e.Capacity >= 0 {
		e.AttendeeCount = e.Capacity
	}
	e.AvailableSlots = e.Capacity - e.AttendeeCount
	e.IsFull = e.AvailableSlots <= 0
}

// ReleaseSlot returns a copy of e with one booking removed for the viewer.
// The count is authoritative here, so Attendees is not consulted.
func (e Event) ReleaseSlot() Event {
	e.Attendees = append([]Attendee(nil), e.Attendees...)
	if e.AttendeeCount > 0 {
		e.AttendeeCount--
	}
	e.UserHasBooked = false
	e.derive()
	return e
}

// NormalizeEvents normalizes every event in place and returns the slice.
func NormalizeEvents(events []Event) []Event {
	for i := range events {
		events[i].Normalize()
	}
	return events
}

// EventInput is the payload for creating or updating an event.
type EventInput struct {
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Date        time.Time `json:"date" yaml:"date"`
	Location    string    `json:"location" yaml:"location"`
	Capacity    int       `json:"capacity" yaml:"capacity"`
}

// InputFromEvent seeds an editor with an existing event's values.
func InputFromEvent(e Event) EventInput {
	return EventInput{
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Location:    e.Location,
		Capacity:    e.Capacity,
	}
}

// Validate performs the checks the API would reject anyway.
func (in EventInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if in.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if in.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1")
	}
	return nil
}
