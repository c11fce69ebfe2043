package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var trackedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List repositories in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				repos, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(repos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty")
					return nil
				}

				rows := make([][]string, 0, len(repos))
				for _, repo := range repos {
					if trackedOnly && !repo.Tracked {
						continue
					}
					rows = append(rows, []string{
						repo.Name,
						vcsLabel(repo.VCS),
						yesNo(repo.Tracked),
						intervalLabel(repo.PullInterval),
						lastFetchLabel(cmd.Context(), store, repo.ID),
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracked repositories")
					return nil
				}

				table := renderTable([]tableColumn{
					{header: "Name"},
					{header: "VCS"},
					{header: "Tracked"},
					{header: "Interval", align: alignRight},
					{header: "Last Fetch"},
				}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&trackedOnly, "tracked", false, "Show only tracked repositories")
	return cmd
}
