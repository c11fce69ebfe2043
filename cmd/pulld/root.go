package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/daemonrun"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag  string
		logLevel    string
		noDiscovery bool
		excludes    []string
	)

	cmd := &cobra.Command{
		Use:   "pulld [repository...]",
		Short: "Repository pull scheduler daemon",
		Long: `pulld keeps local working copies of catalog repositories up to date.

Without arguments it schedules every repository in the catalog. Naming
repositories restricts the run to those, and --not removes repositories
from the set; both are meant for partitioning work across instances.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(strings.TrimSpace(configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				NoDiscovery: noDiscovery,
				Include:     args,
				Exclude:     excludes,
			})
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&noDiscovery, "no-discovery", false, "Pull without running commit discovery")
	cmd.Flags().StringArrayVar(&excludes, "not", nil, "Skip the named repository (repeatable)")
	return cmd
}
