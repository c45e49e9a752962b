package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/folio/internal/config"
	"github.com/marcus/folio/internal/docdir"
	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/plugins/export"
)

func newHistoryCommand(_ *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history DOCUMENT",
		Short: "List exported copies of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := engine.NewFileEngine()
			doc, err := eng.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer eng.Close()

			return printHistory(cmd.OutOrStdout(), doc, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to show (0 for all)")
	return cmd
}

// printHistory lists the document's exports. It never creates a data
// directory or history database for a document that has none.
func printHistory(w io.Writer, doc *engine.Document, limit int) error {
	dir, ok := docdir.Lookup(doc.Path, doc.ID)
	if !ok {
		fmt.Fprintln(w, "no exports")
		return nil
	}
	path := filepath.Join(dir, export.HistoryFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(w, "no exports")
			return nil
		}
		return err
	}
	h, err := export.OpenHistory(path)
	if err != nil {
		return err
	}
	defer h.Close()

	recs, err := h.List(limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "no exports")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSIZE\tPATH")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Size, r.Path)
	}
	return tw.Flush()
}

func newPruneCommand(_ *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove data directories of documents that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := docdir.Prune()
			if err != nil {
				return err
			}
			for _, dir := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), "removed", dir)
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to prune")
			}
			return nil
		},
	}
}

func newConfigCommand(opts *options) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the config path, or write the defaults with --init",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = config.ConfigPath()
			}
			if write {
				if err := config.Save(path, config.Default()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "init", false, "write the default config")
	return cmd
}
