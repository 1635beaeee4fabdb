package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/app"
	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/query"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Aliases: []string{"event"},
	Short:   "List, book and manage events",
	Long: `Browse upcoming events and book or cancel seats.

Admins can also create, update and delete events.

Examples:
  # Upcoming events
  eventify events list

  # Book as a guest
  eventify events book 3 --name "Grace" --email grace@example.com

  # All events with attendee counts (admin)
  eventify events list --admin --format json`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List upcoming events",
	Args:  cobra.NoArgs,
	RunE:  runEventsList,
}

var eventsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsShow,
}

var eventsBookCmd = &cobra.Command{
	Use:   "book <id>",
	Short: "Book a seat",
	Long: `Book a seat at an event.

Logged in attendees book under their account. Guests give a name and an
email, prompted when the flags are omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runEventsBook,
}

var eventsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel your booking",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsCancel,
}

var eventsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an event (admin)",
	Long: `Create an event. Dates take the form "2026-05-01 18:30" in local time
or RFC 3339.

Example:
  eventify events create --title "Go Meetup" --date "2026-05-01 18:30" --capacity 40`,
	Args: cobra.NoArgs,
	RunE: runEventsCreate,
}

var eventsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an event (admin)",
	Long:  `Update an event. Only the flags given are changed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsUpdate,
}

var eventsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an event and its bookings (admin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsDelete,
}

var (
	eventsAdmin  bool
	eventsBooked bool

	bookName  string
	bookEmail string

	eventsYes bool

	eventTitle       string
	eventDescription string
	eventDate        string
	eventLocation    string
	eventCapacity    int
)

// DateFlagLayout is the local-time layout accepted by --date.
const DateFlagLayout = "2006-01-02 15:04"

func init() {
	eventsListCmd.Flags().BoolVar(&eventsAdmin, "admin", false, "list every event with attendee counts (admin)")
	eventsListCmd.Flags().BoolVar(&eventsBooked, "booked", false, "only events you have booked")

	eventsBookCmd.Flags().StringVar(&bookName, "name", "", "name to book under (guests)")
	eventsBookCmd.Flags().StringVar(&bookEmail, "email", "", "email to book under (guests)")

	eventsCancelCmd.Flags().BoolVarP(&eventsYes, "yes", "y", false, "do not ask for confirmation")
	eventsDeleteCmd.Flags().BoolVarP(&eventsYes, "yes", "y", false, "do not ask for confirmation")

	for _, c := range []*cobra.Command{eventsCreateCmd, eventsUpdateCmd} {
		c.Flags().StringVar(&eventTitle, "title", "", "event title")
		c.Flags().StringVar(&eventDescription, "description", "", "event description")
		c.Flags().StringVar(&eventDate, "date", "", `start time, "2006-01-02 15:04" local or RFC 3339`)
		c.Flags().StringVar(&eventLocation, "location", "", "venue")
		c.Flags().IntVar(&eventCapacity, "capacity", 0, "number of seats")
	}
	_ = eventsCreateCmd.MarkFlagRequired("title")
	_ = eventsCreateCmd.MarkFlagRequired("date")
	_ = eventsCreateCmd.MarkFlagRequired("capacity")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsShowCmd)
	eventsCmd.AddCommand(eventsBookCmd)
	eventsCmd.AddCommand(eventsCancelCmd)
	eventsCmd.AddCommand(eventsCreateCmd)
	eventsCmd.AddCommand(eventsUpdateCmd)
	eventsCmd.AddCommand(eventsDeleteCmd)

	rootCmd.AddCommand(eventsCmd)
}

func parseDateFlag(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DateFlagLayout, s, time.Local)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date", fmt.Sprintf("%q is not a date like %q", s, DateFlagLayout))
	}
	return t, nil
}

func parseID(s string) (domain.ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperrors.NewValidationError("id", "must not be empty")
	}
	return domain.ID(s), nil
}

// viewerEvent finds id in the viewer's public list, which carries the
// booking state, and falls back to the single event endpoint.
func viewerEvent(ctx context.Context, svc *app.Service, id domain.ID) (domain.Event, error) {
	events, err := svc.PublicEvents(ctx, query.FetchOptions{})
	if err != nil {
		return domain.Event{}, err
	}
	for _, ev := range events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return svc.Event(ctx, id, query.FetchOptions{})
}

func runEventsList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	var events []domain.Event
	if eventsAdmin {
		events, err = rt.svc.AdminEvents(ctx, query.FetchOptions{})
	} else {
		events, err = rt.svc.PublicEvents(ctx, query.FetchOptions{})
	}
	if err != nil {
		return err
	}

	if eventsBooked {
		mine := events[:0:0]
		for _, ev := range events {
			if ev.UserHasBooked {
				mine = append(mine, ev)
			}
		}
		events = mine
	}

	return rt.render(ux.EventTable{Events: events, Status: func(ev domain.Event) string {
		return app.EligibilityFor(rt.svc.State(), ev).String()
	}})
}

func runEventsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ev, err := viewerEvent(cmd.Context(), rt.svc, id)
	if err != nil {
		return err
	}
	return rt.render(ux.EventDetail{Event: ev, Action: actionText(rt.svc.Eligibility(ev))})
}

func actionText(e app.Eligibility) string {
	switch e {
	case app.Disabled:
		return "Event Full"
	case app.AlreadyBooked:
		return "Booked. Cancel with 'eventify events cancel <id>'"
	case app.AdminControls:
		return "Admin: update, delete or list attendees"
	default:
		return "Book Now with 'eventify events book <id>'"
	}
}

func runEventsBook(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	ev, err := viewerEvent(ctx, rt.svc, id)
	if err != nil {
		return err
	}

	contact := app.Contact{Name: bookName, Email: bookEmail}
	if !rt.svc.State().IsAuthenticated() && rt.svc.Eligibility(ev) == app.Bookable {
		if contact.Name == "" {
			if contact.Name, err = promptString(cmd, "Name", ""); err != nil {
				return err
			}
		}
		if contact.Email == "" {
			if contact.Email, err = promptString(cmd, "Email", ""); err != nil {
				return err
			}
		}
	}

	booking, err := rt.svc.Book(ctx, nil, ev, contact)
	if err != nil || booking == nil {
		return err
	}
	return rt.render(ux.AttendeeTable{*booking})
}

func runEventsCancel(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ok, err := confirm(cmd, fmt.Sprintf("Cancel your booking for event %s?", id), eventsYes)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.ErrOrStderr(), "Aborted")
		return nil
	}

	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.svc.CancelBooking(cmd.Context(), nil, id)
}

func eventInputFromFlags(cmd *cobra.Command, in domain.EventInput) (domain.EventInput, error) {
	flags := cmd.Flags()
	if flags.Changed("title") {
		in.Title = strings.TrimSpace(eventTitle)
	}
	if flags.Changed("description") {
		in.Description = eventDescription
	}
	if flags.Changed("location") {
		in.Location = eventLocation
	}
	if flags.Changed("capacity") {
		in.Capacity = eventCapacity
	}
	if flags.Changed("date") {
		date, err := parseDateFlag(eventDate)
		if err != nil {
			return in, err
		}
		in.Date = date
	}
	return in, nil
}

func runEventsCreate(cmd *cobra.Command, args []string) error {
	in, err := eventInputFromFlags(cmd, domain.EventInput{})
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ev, err := rt.svc.CreateEvent(cmd.Context(), nil, in)
	if err != nil {
		return err
	}
	return rt.render(ux.EventDetail{Event: *ev})
}

func runEventsUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	current, err := rt.svc.Event(ctx, id, query.FetchOptions{Force: true})
	if err != nil {
		return err
	}
	in, err := eventInputFromFlags(cmd, domain.InputFromEvent(current))
	if err != nil {
		return err
	}

	ev, err := rt.svc.UpdateEvent(ctx, nil, id, in)
	if err != nil {
		return err
	}
	return rt.render(ux.EventDetail{Event: *ev})
}

func runEventsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ok, err := confirm(cmd, fmt.Sprintf("Delete event %s and all its bookings?", id), eventsYes)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.ErrOrStderr(), "Aborted")
		return nil
	}

	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.svc.DeleteEvent(cmd.Context(), nil, id, app.AdminList)
}
