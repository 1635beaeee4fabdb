package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/health"
	"github.com/felixgeelhaar/eventify/internal/metrics"
	"github.com/felixgeelhaar/eventify/internal/server"
	"github.com/felixgeelhaar/eventify/internal/tui"
	"github.com/felixgeelhaar/eventify/internal/version"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"browse"},
	Short:   "Browse and book events interactively",
	Long: `Open the interactive event browser.

Keys:
  enter      open event            esc  back
  m / a / t  my bookings, admin, attendees
  b / c      book / cancel booking
  n / e / d  new, edit, delete (admin)
  l / s      log in or out / sign up
  r          refresh               q    quit

With --metrics-addr the client's cache, mutation and auth metrics are served
at /metrics on that address while the browser runs, next to /health/ready.

Logs are discarded unless logging.file is configured.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

var tuiMetricsAddr string

func init() {
	tuiCmd.Flags().StringVar(&tuiMetricsAddr, "metrics-addr", "", "serve /metrics on this address, e.g. 127.0.0.1:9091 (default metrics.addr)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	bridge := tui.NewBridge()
	rt, err := newRuntime(cmd, runtimeOptions{notifier: bridge, interactive: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	addr := tuiMetricsAddr
	if addr == "" {
		addr = rt.cfg.Metrics.Addr
	}
	if addr != "" {
		_, stopped, err := rt.serveMetrics(ctx, addr)
		if err != nil {
			return err
		}
		defer func() {
			cancel()
			<-stopped
		}()
	}

	return tui.Run(ctx, rt.svc, bridge)
}

// serveMetrics serves /metrics and the health probes until ctx ends. It
// returns the bound address and a channel closed once the server has shut
// down.
func (rt *runtime) serveMetrics(ctx context.Context, addr string) (net.Addr, <-chan struct{}, error) {
	probes := health.NewProbeManager(version.GetInfo().Version)
	probes.AddChecker(health.NewAPIChecker(rt.cfg.API.URL, nil))
	probes.AddChecker(health.NewSessionChecker(rt.backend))

	srv := server.New(probes, server.Config{
		Address: addr,
		Metrics: metrics.HandlerFor(rt.registry),
		Logger:  rt.logger,
	})
	bound, err := srv.Listen()
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	rt.logger.Info("metrics available", "url", "http://"+displayHost(bound)+"/metrics")

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := srv.Serve(ctx); err != nil {
			rt.logger.LogError("metrics server failed", err)
		}
	}()
	return bound, stopped, nil
}
