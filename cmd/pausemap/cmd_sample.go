package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSampleCmd(flags *rootFlags) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a structure sample of each source to storage/samples",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd, flags, setupOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			names, err := env.selected(source)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				path, err := env.pipeline.Sample(withContext(cmd), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", name, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", sourceAll, "gdelt, owid, worldbank or all")
	return cmd
}
