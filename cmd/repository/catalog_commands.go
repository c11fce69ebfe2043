package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		vcsFlag     string
		uriFlag     string
		displayName string
		interval    int
		untracked   bool
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a repository in the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vcsType, ok := catalog.ParseVCS(vcsFlag)
			if !ok {
				return fmt.Errorf("unsupported vcs %q (expected one of %s)", vcsFlag, vcsChoices())
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				repo, err := store.Create(cmd.Context(), catalog.CreateParams{
					Name:         args[0],
					DisplayName:  displayName,
					VCS:          vcsType,
					RemoteURI:    uriFlag,
					PullInterval: interval,
					Untracked:    untracked,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s, tracked: %s)\n", repo.Name, vcsLabel(repo.VCS), yesNo(repo.Tracked))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&vcsFlag, "vcs", "", "Version control system (git, hg, svn)")
	cmd.Flags().StringVar(&uriFlag, "uri", "", "Remote repository URI")
	cmd.Flags().StringVar(&displayName, "display", "", "Human-facing display name")
	cmd.Flags().IntVar(&interval, "interval", 0, "Minimum seconds between updates (0 uses the global minimum)")
	cmd.Flags().BoolVar(&untracked, "untracked", false, "Register without scheduling updates")
	_ = cmd.MarkFlagRequired("vcs")
	_ = cmd.MarkFlagRequired("uri")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a repository and its bookkeeping rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				repo, err := store.MustGetByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				removed, err := store.Remove(cmd.Context(), repo.ID)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("repository %q disappeared before removal", repo.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", repo.Name)
				return nil
			})
		},
	}
}

func newTrackCommand(ctx *commandContext) *cobra.Command {
	return newTrackingCommand(ctx, "track <name>", "Schedule a repository for updates", true, "Tracking %s\n")
}

func newUntrackCommand(ctx *commandContext) *cobra.Command {
	return newTrackingCommand(ctx, "untrack <name>", "Stop scheduling a repository for updates", false, "No longer tracking %s\n")
}

func newTrackingCommand(ctx *commandContext, use, short string, tracked bool, confirmation string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				repo, err := store.MustGetByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := store.SetTracked(cmd.Context(), repo.ID, tracked); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), confirmation, repo.Name)
				return nil
			})
		},
	}
}

func newRequestUpdateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "request-update <name>",
		Short: "Ask the daemon to sync a repository ahead of schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				repo, err := store.MustGetByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if _, err := store.RequestUpdate(cmd.Context(), repo.ID); err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Requested urgent update for %s\n", repo.Name)
				if !repo.Tracked {
					fmt.Fprintf(stdout, "note: %s is untracked; the daemon ignores the request until it is tracked\n", repo.Name)
				}
				return nil
			})
		},
	}
}
