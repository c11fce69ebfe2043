package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/updater"
)

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var noDiscovery bool
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Pull a repository and discover new commits",
		Long: `Update synchronizes one repository end to end: refresh the local
working copy, scan branch heads for new commits, and record the outcome
in the catalog. The pulld daemon invokes this command for every
scheduled update, and operators can run it by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				logger, err := ctx.newLogger(cfg)
				if err != nil {
					return fmt.Errorf("setup logging: %w", err)
				}
				repo, err := store.MustGetByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				u, err := updater.New(cfg, store, logger)
				if err != nil {
					return err
				}
				if err := u.Update(cmd.Context(), repo, updater.Options{NoDiscovery: noDiscovery}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", repo.Name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noDiscovery, "no-discovery", false, "Skip commit discovery after the pull")
	return cmd
}

func newPullCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <name>",
		Short: "Refresh a repository working copy without discovery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				logger, err := ctx.newLogger(cfg)
				if err != nil {
					return fmt.Errorf("setup logging: %w", err)
				}
				repo, err := store.MustGetByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				u, err := updater.New(cfg, store, logger)
				if err != nil {
					return err
				}
				if err := u.Pull(cmd.Context(), repo); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pulled %s\n", repo.Name)
				return nil
			})
		},
	}
}

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discover <name>",
		Short: "Scan a repository for new commits without pulling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				logger, err := ctx.newLogger(cfg)
				if err != nil {
					return fmt.Errorf("setup logging: %w", err)
				}
				repo, err := store.MustGetByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				u, err := updater.New(cfg, store, logger)
				if err != nil {
					return err
				}
				moved, err := u.Discover(cmd.Context(), repo)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discovery finished for %s (%d refs moved)\n", repo.Name, moved)
				return nil
			})
		},
	}
}
