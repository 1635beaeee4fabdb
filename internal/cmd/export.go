package cmd

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/config"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export events to other tools",
}

var exportICSCmd = &cobra.Command{
	Use:   "ics",
	Short: "Export events as an iCalendar file",
	Long: `Write upcoming events as an iCalendar (.ics) document that calendar
applications can import or subscribe to.

Examples:
  # Everything, to stdout
  eventify export ics

  # Only what you booked
  eventify export ics --booked --out ~/eventify.ics`,
	Args: cobra.NoArgs,
	RunE: runExportICS,
}

var (
	exportBooked bool
	exportOut    string
)

func init() {
	exportICSCmd.Flags().BoolVar(&exportBooked, "booked", false, "only events you have booked")
	exportICSCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to file instead of stdout")

	exportCmd.AddCommand(exportICSCmd)
	rootCmd.AddCommand(exportCmd)
}

func runExportICS(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if exportOut == "" {
		_, err := rt.svc.ExportCalendar(cmd.Context(), rt.out, exportBooked)
		return err
	}

	var buf bytes.Buffer
	n, err := rt.svc.ExportCalendar(cmd.Context(), &buf, exportBooked)
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(exportOut, buf.Bytes()); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFileWriteFailed, "failed to write calendar", err)
	}
	rt.info("Wrote %s to %s", ux.Count(n, "event"), exportOut)
	return nil
}
