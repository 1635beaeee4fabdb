package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/app"
	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/query"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

var attendeesCmd = &cobra.Command{
	Use:   "attendees",
	Short: "Manage attendees (admin)",
	Long: `List and edit the attendees of events. Every subcommand requires an
admin session.

Examples:
  eventify attendees list 3
  eventify attendees add --event 3 --name "Grace" --email grace@example.com
  eventify attendees remove 12 --yes`,
}

var attendeesListCmd = &cobra.Command{
	Use:   "list <event-id>",
	Short: "List the attendees of an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendeesList,
}

var attendeesAllCmd = &cobra.Command{
	Use:   "all",
	Short: "List every attendee",
	Args:  cobra.NoArgs,
	RunE:  runAttendeesAll,
}

var attendeesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an attendee to an event",
	Args:  cobra.NoArgs,
	RunE:  runAttendeesAdd,
}

var attendeesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change an attendee's event, name or email",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendeesUpdate,
}

var attendeesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an attendee",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendeesRemove,
}

var (
	attendeeEvent string
	attendeeName  string
	attendeeEmail string
	attendeeYes   bool
)

func init() {
	for _, c := range []*cobra.Command{attendeesAddCmd, attendeesUpdateCmd} {
		c.Flags().StringVar(&attendeeEvent, "event", "", "event id")
		c.Flags().StringVar(&attendeeName, "name", "", "attendee name")
		c.Flags().StringVar(&attendeeEmail, "email", "", "attendee email")
	}
	_ = attendeesAddCmd.MarkFlagRequired("event")
	_ = attendeesAddCmd.MarkFlagRequired("name")
	_ = attendeesAddCmd.MarkFlagRequired("email")
	attendeesRemoveCmd.Flags().BoolVarP(&attendeeYes, "yes", "y", false, "do not ask for confirmation")

	attendeesCmd.AddCommand(attendeesListCmd)
	attendeesCmd.AddCommand(attendeesAllCmd)
	attendeesCmd.AddCommand(attendeesAddCmd)
	attendeesCmd.AddCommand(attendeesUpdateCmd)
	attendeesCmd.AddCommand(attendeesRemoveCmd)

	rootCmd.AddCommand(attendeesCmd)
}

// findAttendee looks id up in the full attendee list.
func findAttendee(ctx context.Context, svc *app.Service, id domain.ID) (domain.Attendee, error) {
	all, err := svc.AllAttendees(ctx, query.FetchOptions{Force: true})
	if err != nil {
		return domain.Attendee{}, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Attendee{}, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("attendee %s not found", id)).
		WithSuggestion("List attendees with 'eventify attendees all'")
}

func runAttendeesList(cmd *cobra.Command, args []string) error {
	eventID, err := parseID(args[0])
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	list, err := rt.svc.Attendees(cmd.Context(), eventID, query.FetchOptions{})
	if err != nil {
		return err
	}
	return rt.render(ux.AttendeeTable(list))
}

func runAttendeesAll(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	list, err := rt.svc.AllAttendees(cmd.Context(), query.FetchOptions{})
	if err != nil {
		return err
	}
	return rt.render(ux.AttendeeTable(list))
}

func runAttendeesAdd(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	a, err := rt.svc.CreateAttendee(cmd.Context(), nil, domain.AttendeeInput{
		EventID: domain.ID(attendeeEvent),
		Name:    attendeeName,
		Email:   attendeeEmail,
	})
	if err != nil || a == nil {
		return err
	}
	return rt.render(ux.AttendeeTable{*a})
}

func runAttendeesUpdate(cmd *cobra.Command, args []string) error {
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

	current, err := findAttendee(ctx, rt.svc, id)
	if err != nil {
		return err
	}
	in := domain.AttendeeInput{EventID: current.EventID, Name: current.Name, Email: current.Email}
	flags := cmd.Flags()
	if flags.Changed("event") {
		in.EventID = domain.ID(attendeeEvent)
	}
	if flags.Changed("name") {
		in.Name = attendeeName
	}
	if flags.Changed("email") {
		in.Email = attendeeEmail
	}

	a, err := rt.svc.UpdateAttendee(ctx, nil, id, in)
	if err != nil || a == nil {
		return err
	}
	return rt.render(ux.AttendeeTable{*a})
}

func runAttendeesRemove(cmd *cobra.Command, args []string) error {
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

	a, err := findAttendee(ctx, rt.svc, id)
	if err != nil {
		return err
	}
	ok, err := confirm(cmd, fmt.Sprintf("Remove %s <%s> from event %s?", a.Name, a.Email, a.EventID), attendeeYes)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.ErrOrStderr(), "Aborted")
		return nil
	}
	return rt.svc.DeleteAttendee(ctx, nil, a)
}
