package main

import (
	"io"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/display/tui"
	"gitlab.com/tinyland/lab/host-pulse/docs/manpage"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "host-pulse",
		Short:         "Host resource monitor with threshold alerts",
		Long:          "host-pulse samples CPU, RAM, GPU, disk and temperature once per interval,\nkeeps a short history and raises a desktop alert when a reading stays over\nits threshold for the configured grace period.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug|info|warn|error)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newTUICmd(opts),
		newSampleCmd(opts),
		newStatusCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
		newManCmd(rootCmd),
	)
	return rootCmd
}

func newManCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "man",
		Short: "Print the man page in roff format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page := manpage.Generate(root, tui.Bindings(), manpage.Build{Version: version, Commit: commit, Date: date})
			_, err := io.WriteString(cmd.OutOrStdout(), page)
			return err
		},
	}
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

// load reads dotenv files, the config file and environment overrides, then
// validates the result.
func (o *globalOptions) load() (*config.Config, error) {
	if err := config.LoadEnvFiles(config.EnvFiles(o.configPath)...); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadOrDefault is load, falling back to the defaults when the
// configuration cannot be used. The load error is returned alongside so the
// caller can log it once a logger exists.
func (o *globalOptions) loadOrDefault() (*config.Config, error) {
	cfg, err := o.load()
	if err == nil {
		return cfg, nil
	}
	cfg = config.DefaultConfig()
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if verr := cfg.Validate(); verr != nil {
			cfg.Logging.Level = "info"
		}
	}
	return cfg, err
}
