package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Reconcile cached sources into weekly summaries and export them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd, flags, setupOptions{repository: true})
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			run, err := env.pipeline.Process(withContext(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run:    %s\n", run.ID)
			fmt.Fprintf(out, "weeks:  %d\n", run.Weeks)
			fmt.Fprintf(out, "series: %d\n", run.Series)
			fmt.Fprintf(out, "output: %s\n", run.Output)
			return nil
		},
	}
}
