package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/eventify/internal/domain"
)

// DateInputLayout is the layout accepted by the event editor.
const DateInputLayout = "2006-01-02 15:04"

const displayLayout = "Mon, Jan 2 2006 15:04"

type formKind int

const (
	formNone formKind = iota
	formLogin
	formSignup
	formGuestBooking
	formConfirmBooking
	formConfirmCancel
	formConfirmDelete
	formConfirmRemoveAttendee
	formEventEditor
)

func (k formKind) String() string {
	switch k {
	case formLogin:
		return "login"
	case formSignup:
		return "signup"
	case formGuestBooking:
		return "guest booking"
	case formConfirmBooking:
		return "confirm booking"
	case formConfirmCancel:
		return "confirm cancel"
	case formConfirmDelete:
		return "confirm delete"
	case formConfirmRemoveAttendee:
		return "confirm remove attendee"
	case formEventEditor:
		return "event editor"
	default:
		return "none"
	}
}

// formValues backs every form field. It lives on the heap so copies of
// the model share it with the form.
type formValues struct {
	name     string
	email    string
	password string
	confirm  bool

	title       string
	description string
	date        string
	location    string
	capacity    string

	event    domain.Event
	attendee domain.Attendee
	// after is the screen to enter once a login succeeds.
	after ViewType
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validEmail(s string) error {
	return domain.ValidateContact("-", s)
}

func newLoginForm(v *formValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(&v.email).Validate(validEmail),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&v.password).Validate(required("password")),
		).Title("Log in to Eventify"),
	).WithShowHelp(true)
}

func newSignupForm(v *formValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&v.name).Validate(required("name")),
			huh.NewInput().Title("Email").Value(&v.email).Validate(validEmail),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&v.password).
				Validate(func(s string) error {
					if len(s) < 6 {
						return fmt.Errorf("password must be at least 6 characters")
					}
					return nil
				}),
		).Title("Create an account"),
	).WithShowHelp(true)
}

func newGuestBookingForm(v *formValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&v.name).Validate(required("name")),
			huh.NewInput().Title("Email").Value(&v.email).Validate(validEmail),
		).Title("Book " + v.event.Title).
			Description(v.event.Date.Local().Format(displayLayout)),
	).WithShowHelp(true)
}

func newConfirmForm(v *formValues, title, description, affirmative string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative(affirmative).
				Negative("Back").
				Value(&v.confirm),
		),
	).WithShowHelp(true)
}

func newEventEditor(v *formValues, editing bool) *huh.Form {
	heading := "New event"
	if editing {
		heading = "Edit " + v.event.Title
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").CharLimit(200).Value(&v.title).Validate(required("title")),
			huh.NewText().Title("Description").Value(&v.description),
			huh.NewInput().Title("Date").Description("YYYY-MM-DD HH:MM, local time").
				Value(&v.date).Validate(func(s string) error {
				_, err := parseDate(s)
				return err
			}),
			huh.NewInput().Title("Location").Value(&v.location),
			huh.NewInput().Title("Capacity").Value(&v.capacity).Validate(func(s string) error {
				_, err := parseCapacity(s)
				return err
			}),
		).Title(heading),
	).WithShowHelp(true)
}

func fillEditor(v *formValues, ev domain.Event) {
	in := domain.InputFromEvent(ev)
	v.event = ev
	v.title = in.Title
	v.description = in.Description
	v.date = in.Date.Local().Format(DateInputLayout)
	v.location = in.Location
	v.capacity = strconv.Itoa(in.Capacity)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateInputLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must look like 2026-05-01 18:30")
	}
	return t, nil
}

func parseCapacity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("capacity must be a whole number of at least 1")
	}
	return n, nil
}

func (v *formValues) eventInput() (domain.EventInput, error) {
	date, err := parseDate(v.date)
	if err != nil {
		return domain.EventInput{}, err
	}
	capacity, err := parseCapacity(v.capacity)
	if err != nil {
		return domain.EventInput{}, err
	}
	in := domain.EventInput{
		Title:       strings.TrimSpace(v.title),
		Description: strings.TrimSpace(v.description),
		Date:        date,
		Location:    strings.TrimSpace(v.location),
		Capacity:    capacity,
	}
	return in, in.Validate()
}
