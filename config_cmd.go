package main

import (
	"fmt"
	"os"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/host-pulse/config"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, validate or create the configuration file",
	}
	cmd.AddCommand(
		newConfigShowCmd(opts),
		newConfigValidateCmd(opts),
		newConfigInitCmd(opts),
	)
	return cmd
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return errors.Wrap(err, "encode config")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := opts.load(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", opts.configPath)
			return nil
		},
	}
}

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file populated with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			}
			if err := config.SaveConfig(config.DefaultConfig(), opts.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
