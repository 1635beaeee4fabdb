package cmd

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/health"
	"github.com/felixgeelhaar/eventify/internal/metrics"
	"github.com/felixgeelhaar/eventify/internal/mockapi"
	"github.com/felixgeelhaar/eventify/internal/server"
	"github.com/felixgeelhaar/eventify/internal/version"
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run an in-memory Eventify API for local development",
	Long: `Start an in-memory double of the Eventify REST API.

State lives in memory and is lost on exit. With --seed (the default) the
server starts with two accounts and three events:

  admin@eventify.dev / admin123      admin
  ann@eventify.dev   / attendee123   attendee

Besides the API the server exposes:
  /metrics        Prometheus metrics
  /health/live    Liveness probe
  /health/ready   Readiness probe

Example:
  eventify mock-server --addr :8080 &
  eventify --api-url http://localhost:8080 events list`,
	Args: cobra.NoArgs,
	RunE: runMockServer,
}

var (
	mockAddr            string
	mockSeed            bool
	mockLatency         time.Duration
	mockShutdownTimeout time.Duration
)

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", ":8080", "address to listen on")
	mockServerCmd.Flags().BoolVar(&mockSeed, "seed", true, "start with demo accounts and events")
	mockServerCmd.Flags().DurationVar(&mockLatency, "latency", 0, "delay every API response, e.g. 300ms")
	mockServerCmd.Flags().DurationVar(&mockShutdownTimeout, "shutdown-timeout", 10*time.Second, "maximum time to drain connections on exit")

	rootCmd.AddCommand(mockServerCmd)
}

func runMockServer(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, path, err := cc.LoadConfig()
	if err != nil {
		return err
	}
	rt := &runtime{cc: cc, cfg: cfg, cfgPath: path, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	defer rt.Close()
	if rt.logger, err = rt.newLogger(false); err != nil {
		return err
	}
	rt.registry, rt.metrics = metrics.NewRegistry()

	mock := mockapi.New(
		mockapi.WithLogger(rt.logger),
		mockapi.WithMetrics(rt.metrics),
		mockapi.WithLatency(mockLatency))
	if mockSeed {
		if err := mock.Seed(); err != nil {
			return fmt.Errorf("seed mock api: %w", err)
		}
	}

	info := version.GetInfo()
	srv := server.New(health.NewProbeManager(info.Version), server.Config{
		Address:         mockAddr,
		ShutdownTimeout: mockShutdownTimeout,
		Metrics:         metrics.HandlerFor(rt.registry),
		Logger:          rt.logger,
	})
	srv.Mount("/", mock.Handler())

	addr, err := srv.Listen()
	if err != nil {
		return fmt.Errorf("listen on %s: %w", mockAddr, err)
	}
	base := "http://" + displayHost(addr)

	out := rt.out
	fmt.Fprintf(out, "\n[ eventify mock-server ] %s\n\n", info.Version)
	fmt.Fprintf(out, "API:      %s\n", base)
	fmt.Fprintf(out, "Metrics:  %s/metrics\n", base)
	fmt.Fprintf(out, "Health:   %s/health/ready\n", base)
	if mockSeed {
		fmt.Fprintf(out, "\nAccounts: admin@eventify.dev / admin123, ann@eventify.dev / attendee123\n")
	}
	fmt.Fprintf(out, "\nPress Ctrl+C to stop the server\n\n")

	if err := srv.Serve(cmd.Context()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	fmt.Fprintln(out, "Server stopped gracefully")
	return nil
}

// displayHost turns a wildcard listen address into one a browser can open.
func displayHost(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
