package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"mp3fetch/internal/task"
)

func newInfoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <url>",
		Short: "Print title and playlist members of a url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			tm := task.NewManager(newSource(cfg), task.Options{
				DataDir:      cfg.DataDir,
				ProbeTimeout: cfg.Acquire.ProbeTimeout,
			})
			md, err := tm.Probe(context.Background(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(md) //nolint:wrapcheck
		},
	}
}
