// Package calendar renders events as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/felixgeelhaar/eventify/internal/domain"
)

// DefaultDuration is used for events, which carry no end time.
const DefaultDuration = 2 * time.Hour

// Options tunes the generated feed.
type Options struct {
	// Name is the calendar display name.
	Name string
	// Host qualifies event UIDs, typically the API host.
	Host string
	// Duration is the length assumed for every event.
	Duration time.Duration
	// Now stamps DTSTAMP.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "Eventify"
	}
	if o.Host == "" {
		o.Host = "eventify.local"
	}
	if o.Duration <= 0 {
		o.Duration = DefaultDuration
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// UID returns the stable iCalendar UID of an event.
func UID(id domain.ID, host string) string {
	return fmt.Sprintf("event-%s@%s", id, host)
}

// Build assembles a calendar with one VEVENT per event.
func Build(events []domain.Event, opts Options) *ics.Calendar {
	opts = opts.withDefaults()
	stamp := opts.Now().UTC()

	cal := ics.NewCalendarFor("eventify")
	cal.SetMethod(ics.MethodPublish)
	cal.SetName(opts.Name)
	cal.SetXWRCalName(opts.Name)

	for _, ev := range events {
		ev.Normalize()
		vevent := cal.AddEvent(UID(ev.ID, opts.Host))
		vevent.SetDtStampTime(stamp)
		vevent.SetStartAt(ev.Date.UTC())
		vevent.SetEndAt(ev.Date.UTC().Add(opts.Duration))
		vevent.SetSummary(ev.Title)
		vevent.SetDescription(describe(ev))
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
		vevent.SetStatus(ics.ObjectStatusConfirmed)
		if ev.UserHasBooked {
			vevent.AddCategory("BOOKED")
		}
	}
	return cal
}

// Write serializes the feed for events to w.
func Write(w io.Writer, events []domain.Event, opts Options) error {
	return Build(events, opts).SerializeTo(w)
}

func describe(ev domain.Event) string {
	var b strings.Builder
	if ev.Description != "" {
		b.WriteString(ev.Description)
		b.WriteString("\n\n")
	}
	if ev.IsFull {
		fmt.Fprintf(&b, "Fully booked (%d seats)", ev.Capacity)
	} else {
		fmt.Fprintf(&b, "%d of %d seats available", ev.AvailableSlots, ev.Capacity)
	}
	return b.String()
}
