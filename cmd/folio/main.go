// Command folio is a terminal document viewer built on a plugin registry.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "folio [flags] DOCUMENT",
		Short: "Terminal document viewer",
		Long: `folio opens a document in the terminal. Interaction modes, the export
plugin and the plugin registry are configured from ~/.config/folio/config.yaml.`,
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runView(cmd, args[0])
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/folio/config.yaml)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFile, "log-file", "", "log file (default ~/.config/folio/folio.log)")
	root.Flags().StringVar(&opts.outputDir, "output-dir", "", "directory exported copies are written to")
	root.Flags().BoolVar(&opts.noMouse, "no-mouse", false, "disable mouse input")
	root.Flags().BoolVar(&opts.headless, "headless", false, "print plugin status instead of starting the viewer")

	root.AddCommand(newHistoryCommand(opts))
	root.AddCommand(newPruneCommand(opts))
	root.AddCommand(newConfigCommand(opts))
	return root
}
