package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/contentstream/internal/app"
	"github.com/five82/contentstream/internal/config"
)

type globalFlags struct {
	configPath string
	hash       string
	verbose    bool
}

func (g *globalFlags) options(headless bool) app.Options {
	return app.Options{
		ConfigPath: g.configPath,
		Hash:       g.hash,
		Verbose:    g.verbose,
		Headless:   headless,
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "contentstream",
		Short: "Browse a filtered article stream in the terminal",
		Long: `contentstream shows the widget's article listing as a scrolling card grid.
Scrolling near the end of the loaded cards fetches the next rows; picking a
tag re-filters the listing. The filter set persists between runs.

Run without a subcommand to start the terminal UI.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), flags.options(false))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.StringVar(&flags.hash, "hash", "", "filter spec applied on start, e.g. '#clear/pillars:Sleep'")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newFiltersCmd(flags), newFetchCmd(flags))
	return root
}

func newFiltersCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Inspect or change the persisted filter set",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := app.Open(flags.options(true))
			if err != nil {
				return err
			}
			defer session.Close()
			return session.WriteFilters(cmd.OutOrStdout())
		},
	}

	apply := &cobra.Command{
		Use:   "apply <spec>",
		Short: "Apply a filter spec such as 'clear/pillars:Sleep'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Open(flags.options(true))
			if err != nil {
				return err
			}
			defer session.Close()

			_, invalid := session.ApplySpec(args[0])
			if err := session.WriteFilters(cmd.OutOrStdout()); err != nil {
				return err
			}
			if len(invalid) > 0 {
				return fmt.Errorf("skipped malformed tokens: %s", strings.Join(invalid, ", "))
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <property[:tag]>",
		Short: "Remove one filter, or every filter of a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Open(flags.options(true))
			if err != nil {
				return err
			}
			defer session.Close()

			if _, err := session.RemoveFilter(args[0]); err != nil {
				return err
			}
			return session.WriteFilters(cmd.OutOrStdout())
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := app.Open(flags.options(true))
			if err != nil {
				return err
			}
			defer session.Close()
			return session.ClearFilters()
		},
	}

	cmd.AddCommand(show, apply, remove, clearCmd)
	return cmd
}

func newFetchCmd(flags *globalFlags) *cobra.Command {
	var opts app.FetchOptions

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a listing for the persisted filters",
		Long: `fetch requests the full listing, or with --limit the page
[start, start+limit-1], and prints it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := app.Open(flags.options(true))
			if err != nil {
				return err
			}
			defer session.Close()
			return session.Fetch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.Start, "start", 0, "first article index of the page")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size; zero fetches the full listing")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the raw listing as JSON")
	return cmd
}
