package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/config"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit eventify configuration",
	Long: `Manage the configuration stored at ~/.eventify/config.yaml
($EVENTIFY_HOME/config.yaml when set).

Values are layered: the file, then .env and EVENTIFY_* variables, then
command line flags. view and get show the effective value; set and edit
change the file.

Examples:
  # Effective configuration
  eventify config view

  # Point the client at a local mock server
  eventify config set api.url http://localhost:8080

  # Keep the session in redis
  eventify config set session.backend redis
  eventify config set session.redis_url redis://localhost:6379/0`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigView,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the configuration file in $EDITOR",
	Args:  cobra.NoArgs,
	RunE:  runConfigEdit,
}

var configGetCmd = &cobra.Command{
	Use:       "get <key>",
	Short:     "Get one configuration value",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys(),
	RunE:      runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration value in the file",
	Long: `Set one configuration value using dot notation. Known keys:

  api.url, api.timeout
  session.backend, session.profile, session.path, session.passphrase, session.redis_url
  cache.stale_time, cache.gc_time
  logging.level, logging.format, logging.file
  metrics.addr
  output.format, output.no_color`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

// settingsOf lists every key with its value; the passphrase stays masked.
func settingsOf(cfg *config.Config) (ux.Settings, error) {
	keys := config.Keys()
	settings := make(ux.Settings, 0, len(keys))
	for _, k := range keys {
		v, err := cfg.Get(k)
		if err != nil {
			return nil, err
		}
		settings = append(settings, ux.Setting{Key: k, Value: v})
	}
	return settings, nil
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, path, err := cc.LoadConfig()
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}
	settings, err := settingsOf(cfg)
	if err != nil {
		return err
	}

	rt := &runtime{cc: cc, cfg: cfg, cfgPath: path, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	if f := cfg.Output.Format; f != "json" && f != "yaml" {
		rt.info("Configuration file: %s", path)
	}
	return rt.render(settings)
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	path, err := cc.ResolveConfigPath()
	if err != nil {
		return ux.FormatError(err, "getting config path")
	}
	// Creates the file with defaults on first use.
	if _, err := config.Load(path); err != nil {
		return ux.FormatError(err, "loading configuration")
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	editorCmd := exec.CommandContext(cmd.Context(), editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	cfg, err := config.Load(path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: configuration may contain errors: %v\n", err)
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "✓ Configuration updated successfully")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, _, err := cc.LoadConfig()
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}
	value, err := cfg.Get(args[0])
	if err != nil {
		return ux.NewErrorWithSuggestion(err, "See 'eventify config set --help' for the known keys")
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cc, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	path, err := cc.ResolveConfigPath()
	if err != nil {
		return ux.FormatError(err, "getting config path")
	}
	// Only the file layer is written back, never env or flag overrides.
	cfg, err := config.Load(path)
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}
	if err := cfg.Set(key, value); err != nil {
		return ux.NewErrorWithSuggestion(fmt.Errorf("failed to set value: %w", err),
			"See 'eventify config set --help' for the known keys")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return ux.FormatError(err, "saving configuration")
	}

	shown, _ := cfg.Get(key)
	if !cc.Quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Set %s = %s\n", key, shown)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	path, err := cc.ResolveConfigPath()
	if err != nil {
		return ux.FormatError(err, "getting config path")
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
