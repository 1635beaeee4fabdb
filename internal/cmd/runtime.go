package cmd

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/api"
	"github.com/felixgeelhaar/eventify/internal/app"
	"github.com/felixgeelhaar/eventify/internal/auth"
	"github.com/felixgeelhaar/eventify/internal/config"
	"github.com/felixgeelhaar/eventify/internal/contract"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/metrics"
	"github.com/felixgeelhaar/eventify/internal/mutation"
	"github.com/felixgeelhaar/eventify/internal/query"
	"github.com/felixgeelhaar/eventify/internal/session"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

// runtime is the wired client stack shared by the API commands.
type runtime struct {
	cc       *CommandContext
	cfg      *config.Config
	cfgPath  string
	logger   *log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *session.Store
	backend  session.Backend
	svc      *app.Service
	out      io.Writer
	errOut   io.Writer
	closers  []func() error
}

type runtimeOptions struct {
	// notifier receives mutation outcomes. The default prints successes.
	notifier mutation.Notifier
	// interactive discards logs unless logging.file is set, keeping the
	// terminal to the TUI.
	interactive bool
}

// newRuntime loads the configuration and wires session, API client,
// resolver, cache and coordinator into a Service.
func newRuntime(cmd *cobra.Command, opts runtimeOptions) (rt *runtime, err error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, path, err := cc.LoadConfig()
	if err != nil {
		return nil, err
	}

	rt = &runtime{cc: cc, cfg: cfg, cfgPath: path, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if rt.logger, err = rt.newLogger(opts.interactive); err != nil {
		return nil, err
	}
	rt.registry, rt.metrics = metrics.NewRegistry()

	if rt.backend, err = session.NewBackend(cfg.Session); err != nil {
		return nil, err
	}
	if c, ok := rt.backend.(io.Closer); ok {
		rt.closers = append(rt.closers, c.Close)
	}
	if rt.store, err = session.Open(cmd.Context(), rt.backend); err != nil {
		return nil, err
	}

	validator, err := contract.New()
	if err != nil {
		return nil, err
	}
	client := api.NewClient(cfg.API.URL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithTokenSource(rt.store.Token),
		api.WithValidator(validator),
		api.WithLogger(rt.logger),
		api.WithMetrics(rt.metrics))

	resolver := auth.NewResolver(rt.store, client,
		auth.WithLogger(rt.logger),
		auth.WithMetrics(rt.metrics),
		auth.WithTimeout(cfg.API.Timeout))
	cache := query.New(
		query.WithStaleTime(cfg.Cache.StaleTime),
		query.WithGCTime(cfg.Cache.GCTime),
		query.WithLogger(rt.logger),
		query.WithMetrics(rt.metrics))

	notifier := opts.notifier
	if notifier == nil {
		notifier = &printNotifier{out: rt.errOut, quiet: cc.Quiet}
	}
	rt.svc = app.New(app.Deps{
		API:      client,
		Resolver: resolver,
		Cache:    cache,
		Logger:   rt.logger,
		BaseURL:  cfg.API.URL,
		Mutations: []mutation.Option{
			mutation.WithNotifier(notifier),
			mutation.WithLogger(rt.logger),
			mutation.WithMetrics(rt.metrics),
		},
	})
	return rt, nil
}

func (rt *runtime) newLogger(interactive bool) (*log.Logger, error) {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(rt.cfg.Logging.Level)
	lc.Format = log.ParseFormat(rt.cfg.Logging.Format)
	switch {
	case rt.cfg.Logging.File != "":
		out, err := log.OutputFile(rt.cfg.Logging.File)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, out.Close)
		lc.Output = out
	case interactive:
		lc.Output = log.OutputDiscard()
	default:
		lc.Output = log.NewOutput(rt.errOut)
	}
	logger := log.New(lc)
	log.SetDefaultLogger(logger)
	return logger, nil
}

// Close releases the session backend and log file.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
	rt.closers = nil
}

// render writes v in the configured output format.
func (rt *runtime) render(v any) error {
	f, err := ux.NewFormatter(rt.cfg.Output.Format, &ux.FormatterOptions{
		Writer:  rt.out,
		NoColor: rt.cfg.Output.NoColor,
	})
	if err != nil {
		return err
	}
	return f.Format(v)
}

// info prints a status line to stderr unless --quiet is set.
func (rt *runtime) info(format string, args ...any) {
	if rt.cc.Quiet {
		return
	}
	fmt.Fprintf(rt.errOut, format+"\n", args...)
}

// printNotifier reports successful mutations on the terminal. Failures
// are returned to the command and printed once by main.
type printNotifier struct {
	out   io.Writer
	quiet bool
}

func (p *printNotifier) Notify(n mutation.Notification) {
	if p.quiet || n.Level == mutation.LevelError {
		return
	}
	fmt.Fprintf(p.out, "✓ %s\n", n.Message)
}
