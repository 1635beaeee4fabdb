package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/config"
)

// CommandContext holds the global command-line flags.
type CommandContext struct {
	// Output control
	Verbose bool
	Quiet   bool
	Format  string
	NoColor bool

	// Configuration
	ConfigPath     string
	LogLevel       string
	APIURL         string
	SessionBackend string
	Profile        string
}

// NewCommandContext extracts command context from cobra.Command flags.
// Commands should call this in their RunE function to get their configuration:
//
//	func runCommand(cmd *cobra.Command, args []string) error {
//		cc, err := NewCommandContext(cmd)
//		if err != nil {
//			return fmt.Errorf("failed to create command context: %w", err)
//		}
//		// Use cc.Verbose, cc.Format, etc.
//	}
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	apiURL, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}

	backend, err := cmd.Flags().GetString("session-backend")
	if err != nil {
		return nil, err
	}

	profile, err := cmd.Flags().GetString("profile")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Verbose:        verbose,
		Quiet:          quiet,
		Format:         format,
		NoColor:        noColor,
		ConfigPath:     configPath,
		LogLevel:       logLevel,
		APIURL:         apiURL,
		SessionBackend: backend,
		Profile:        profile,
	}, nil
}

// ResolveConfigPath returns the --config value or the default location.
func (cc *CommandContext) ResolveConfigPath() (string, error) {
	if cc.ConfigPath != "" {
		return cc.ConfigPath, nil
	}
	return config.DefaultPath()
}

// LoadConfig layers the configuration: file, then .env and EVENTIFY_*
// variables, then flags.
func (cc *CommandContext) LoadConfig() (*config.Config, string, error) {
	path, err := cc.ResolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, path, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, path, err
	}
	if err := cc.apply(cfg); err != nil {
		return nil, path, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func (cc *CommandContext) apply(cfg *config.Config) error {
	overrides := []struct {
		key   string
		value string
	}{
		{"api.url", cc.APIURL},
		{"output.format", cc.Format},
		{"logging.level", cc.LogLevel},
		{"session.backend", cc.SessionBackend},
		{"session.profile", cc.Profile},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		if err := cfg.Set(o.key, o.value); err != nil {
			return err
		}
	}
	if cc.Verbose {
		cfg.Logging.Level = "debug"
	}
	if cc.NoColor {
		cfg.Output.NoColor = true
	}
	return nil
}
