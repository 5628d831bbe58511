package main

import (
	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	config   string
	storage  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "pausemap",
		Short: "Reconcile event, health and economic data into weekly summaries",
		Long: "pausemap downloads GDELT event exports, OWID COVID metrics and World Bank\n" +
			"indicators, caches the raw payloads and aligns them on ISO weeks.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "YAML config file (default $PAUSEMAP_CONFIG)")
	pf.StringVar(&flags.storage, "storage", "", "storage root, overrides storage_dir")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error; overrides log_level")

	root.AddCommand(
		newSampleCmd(flags),
		newFetchCmd(flags),
		newProcessCmd(flags),
		newServeCmd(flags),
	)
	return root
}
