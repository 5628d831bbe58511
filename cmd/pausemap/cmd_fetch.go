package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/pausemap/internal/adapters/sources"
)

func newFetchCmd(flags *rootFlags) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and cache raw payloads for the configured window",
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
			ctx := withContext(cmd)
			out := cmd.OutOrStdout()
			if len(names) > 1 {
				results, err := env.pipeline.FetchAll(ctx)
				for _, res := range results {
					if res.Source != "" {
						printResult(out, res)
					}
				}
				return err
			}
			res, err := env.pipeline.Fetch(ctx, names[0])
			if err != nil {
				return err
			}
			printResult(out, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", sourceAll, "gdelt, owid, worldbank or all")
	return cmd
}

func printResult(w io.Writer, res sources.Result) {
	fmt.Fprintf(w, "%s: %d items (%d cached, %d failed)\n", res.Source, res.Items, res.Cached, res.Failed)
}
