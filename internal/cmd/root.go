package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/ux"
)

var rootCmd = &cobra.Command{
	Use:   "eventify",
	Short: "Browse and book Eventify events from the terminal",
	Long: `eventify is a client for the Eventify events API.

Browse upcoming events, book seats as a guest or a member, and manage
events and attendees as an admin. Run 'eventify tui' for the interactive
browser or use the subcommands for scripting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, returning errors with
// recovery hints attached.
func ExecuteContext(ctx context.Context) error {
	return ux.EnhanceError(rootCmd.ExecuteContext(ctx))
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default is $EVENTIFY_HOME/config.yaml or ~/.eventify/config.yaml)")
	pf.String("api-url", "", "Eventify API base URL (overrides api.url)")
	pf.StringP("format", "f", "", "output format: table, text, json or yaml (overrides output.format)")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("verbose", "v", false, "log debug information to stderr")
	pf.BoolP("quiet", "q", false, "suppress informational messages")
	pf.String("log-level", "", "log level: debug, info, warn or error (overrides logging.level)")
	pf.String("session-backend", "", "session backend: file, memory or redis (overrides session.backend)")
	pf.String("profile", "", "session profile name (overrides session.profile)")
}
