package main

import (
	"encoding/json"
	"fmt"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/host-pulse/status"
)

// sampleOutput is the document printed by the sample command.
type sampleOutput struct {
	Snapshot collectors.Snapshot    `json:"snapshot"`
	Status   status.HostStatus      `json:"status"`
	System   *sysmetrics.SystemInfo `json:"system,omitempty"`
}

func newSampleCmd(opts *globalOptions) *cobra.Command {
	var withInfo bool

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Take one snapshot and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loadErr := opts.loadOrDefault()
			if loadErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v (using defaults)\n", loadErr)
			}

			sampler := newSampler(cfg, nil)
			snap, err := sampler.Sample(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "sample host")
			}

			out := sampleOutput{
				Snapshot: snap,
				Status:   status.NewEvaluator(cfg, 0).Evaluate(snap),
			}
			if withInfo {
				if desc, ok := sampler.(describer); ok {
					info, err := desc.SystemInfo(cmd.Context())
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
					}
					out.System = &info
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&withInfo, "info", false, "include static host information")
	return cmd
}
