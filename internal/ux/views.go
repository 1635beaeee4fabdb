package ux

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/eventify/internal/domain"
)

// DateLayout is how event dates are shown.
const DateLayout = "Mon, Jan 2 2006 15:04"

// Views below render as tables or text and marshal to JSON and YAML as
// the plain data they wrap.

// EventTable lists events. Status, when set, fills the STATUS column.
type EventTable struct {
	Events []domain.Event
	Status func(domain.Event) string
}

// Headers implements Tabular.
func (t EventTable) Headers() []string {
	return []string{"ID", "TITLE", "DATE", "LOCATION", "SEATS", "STATUS"}
}

// Rows implements Tabular.
func (t EventTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Events))
	for _, ev := range t.Events {
		rows = append(rows, []string{
			ev.ID.String(),
			ev.Title,
			ev.Date.Local().Format(DateLayout),
			ev.Location,
			Seats(ev),
			t.status(ev),
		})
	}
	return rows
}

func (t EventTable) status(ev domain.Event) string {
	if t.Status != nil {
		return t.Status(ev)
	}
	switch {
	case ev.UserHasBooked:
		return "booked"
	case ev.IsFull:
		return "full"
	default:
		return "open"
	}
}

// MarshalJSON implements json.Marshaler.
func (t EventTable) MarshalJSON() ([]byte, error) { return json.Marshal(t.Events) }

// MarshalYAML implements yaml.Marshaler.
func (t EventTable) MarshalYAML() (interface{}, error) { return t.Events, nil }

// Seats renders free and total seats.
func Seats(ev domain.Event) string {
	return fmt.Sprintf("%d/%d", ev.AvailableSlots, ev.Capacity)
}

// EventDetail describes one event.
type EventDetail struct {
	Event  domain.Event
	Action string
}

func (d EventDetail) String() string {
	ev := d.Event
	var b strings.Builder
	fmt.Fprintf(&b, "%s (#%s)\n", ev.Title, ev.ID)
	fmt.Fprintf(&b, "  When:     %s\n", ev.Date.Local().Format(DateLayout))
	if ev.Location != "" {
		fmt.Fprintf(&b, "  Where:    %s\n", ev.Location)
	}
	fmt.Fprintf(&b, "  Seats:    %s available\n", Seats(ev))
	if d.Action != "" {
		fmt.Fprintf(&b, "  Booking:  %s\n", d.Action)
	}
	if ev.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", ev.Description)
	}
	if len(ev.Attendees) > 0 {
		fmt.Fprintf(&b, "\nAttendees (%d):\n", len(ev.Attendees))
		for _, a := range ev.Attendees {
			fmt.Fprintf(&b, "  - %s <%s>\n", a.Name, a.Email)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// MarshalJSON implements json.Marshaler.
func (d EventDetail) MarshalJSON() ([]byte, error) { return json.Marshal(d.Event) }

// MarshalYAML implements yaml.Marshaler.
func (d EventDetail) MarshalYAML() (interface{}, error) { return d.Event, nil }

// AttendeeTable lists bookings.
type AttendeeTable []domain.Attendee

// Headers implements Tabular.
func (t AttendeeTable) Headers() []string {
	return []string{"ID", "EVENT", "NAME", "EMAIL", "ACCOUNT", "BOOKED"}
}

// Rows implements Tabular.
func (t AttendeeTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, a := range t {
		account := "guest"
		if a.UserID != nil {
			account = a.UserID.String()
		}
		booked := ""
		if !a.CreatedAt.IsZero() {
			booked = a.CreatedAt.Local().Format(DateLayout)
		}
		rows = append(rows, []string{a.ID.String(), a.EventID.String(), a.Name, a.Email, account, booked})
	}
	return rows
}

// SessionView describes the session.
type SessionView struct {
	Status string          `json:"status" yaml:"status"`
	User   *domain.Profile `json:"user,omitempty" yaml:"user,omitempty"`
	Source string          `json:"source,omitempty" yaml:"source,omitempty"`
}

func (v SessionView) String() string {
	if v.User == nil {
		return "Not logged in (" + v.Status + ")"
	}
	name := v.User.Name
	if name == "" {
		name = v.User.Email
	}
	s := fmt.Sprintf("Logged in as %s <%s>\n  Role: %s", name, v.User.Email, v.User.Role)
	if v.Source != "" {
		s += "\n  Session: " + v.Source
	}
	return s
}

// Count renders "n thing(s)".
func Count(n int, thing string) string {
	if n == 1 {
		return "1 " + thing
	}
	return strconv.Itoa(n) + " " + thing + "s"
}

// Setting is one configuration key and its effective value.
type Setting struct {
	Key   string
	Value string
}

// Settings renders configuration as a KEY/VALUE table or a flat mapping.
type Settings []Setting

func (s Settings) Headers() []string { return []string{"KEY", "VALUE"} }

func (s Settings) Rows() [][]string {
	rows := make([][]string, 0, len(s))
	for _, kv := range s {
		rows = append(rows, []string{kv.Key, kv.Value})
	}
	return rows
}

func (s Settings) mapping() map[string]string {
	m := make(map[string]string, len(s))
	for _, kv := range s {
		m[kv.Key] = kv.Value
	}
	return m
}

// MarshalJSON renders the settings as an object keyed by setting.
func (s Settings) MarshalJSON() ([]byte, error) { return json.Marshal(s.mapping()) }

// MarshalYAML renders the settings as a flat mapping.
func (s Settings) MarshalYAML() (interface{}, error) { return s.mapping(), nil }
