package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/ipc"
	"github.com/launchpadtt/phabricator/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, scheduler, and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				summary, err := store.Summarize(cmd.Context())
				if err != nil {
					return err
				}
				resp := fetchDaemonStatus(ctx)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				if resp == nil {
					message := fmt.Sprintf("not running (socket %s)", ctx.socketPath())
					fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, message, colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", resp.PID), colorize))
					fmt.Fprintln(stdout, renderDetailLine("Socket", resp.SocketPath))
					fmt.Fprintln(stdout, renderDetailLine("Lock file", resp.LockPath))
					if resp.CatalogError != "" {
						fmt.Fprintln(stdout, renderStatusLine("Daemon catalog", statusError, resp.CatalogError, colorize))
					}
				}
				fmt.Fprintln(stdout)

				if resp != nil {
					for _, line := range renderSectionHeader("Scheduler", colorize) {
						fmt.Fprintln(stdout, line)
					}
					sched := resp.Scheduler
					if sched.Running {
						fmt.Fprintln(stdout, renderStatusLine("Scheduler", statusOK, "running", colorize))
					} else {
						fmt.Fprintln(stdout, renderStatusLine("Scheduler", statusWarn, "stopped", colorize))
					}
					fmt.Fprintln(stdout, renderDetailLine("Working set", fmt.Sprintf("%d repositories (%d tracked)", sched.WorkingSet, sched.Tracked)))
					fmt.Fprintln(stdout, renderDetailLine("Iterations", strconv.FormatUint(sched.Iterations, 10)))
					fmt.Fprintln(stdout, renderDetailLine("Syncs", strconv.FormatUint(sched.Syncs, 10)))
					fmt.Fprintln(stdout, renderDetailLine("Failures", strconv.FormatUint(sched.Failures, 10)))
					if sched.LastRepository != "" {
						fmt.Fprintln(stdout, renderDetailLine("Last repository", sched.LastRepository))
					}
					if sched.LastError != "" {
						fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, sched.LastError, colorize))
					}
					fmt.Fprintln(stdout, renderDetailLine("Next wake", formatStatusTime(sched.NextWakeAt)))
					fmt.Fprintln(stdout)
				}

				for _, line := range renderSectionHeader("Checks", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, result := range preflight.RunAll(cfg) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				health, healthErr := store.CheckHealth(cmd.Context())
				kind, detail := databaseHealthLine(health, healthErr)
				fmt.Fprintln(stdout, renderStatusLine("Catalog database", kind, detail, colorize))
				for _, tool := range preflight.CheckBinaries(preflight.VCSRequirements(summary.ByVCS)) {
					fmt.Fprintln(stdout, renderStatusLine(tool.Name, toolStatusKind(tool), tool.Detail, colorize))
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Catalog", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderDetailLine("Repositories", fmt.Sprintf("%d total, %d tracked", summary.Total, summary.Tracked)))
				if summary.NeedsUpdate > 0 {
					fmt.Fprintln(stdout, renderStatusLine("Needs update", statusWarn, fmt.Sprintf("%d pending", summary.NeedsUpdate), colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Needs update", statusOK, "none pending", colorize))
				}
				fmt.Fprintln(stdout, renderDetailLine("Database", store.Path()))

				rows := make([][]string, 0, len(summary.ByVCS))
				for _, vcs := range catalog.AllVCS() {
					if count := summary.ByVCS[vcs]; count > 0 {
						rows = append(rows, []string{vcsLabel(vcs), strconv.Itoa(count)})
					}
				}
				if len(rows) > 0 {
					table := renderTable([]tableColumn{
						{header: "VCS"},
						{header: "Repositories", align: alignRight},
					}, rows)
					fmt.Fprintln(stdout, table)
				}
				return nil
			})
		},
	}
}

// fetchDaemonStatus returns nil when the daemon socket is unreachable.
// Status degrades to catalog-only output instead of failing.
func fetchDaemonStatus(ctx *commandContext) *ipc.StatusResponse {
	client, err := ctx.dialClient()
	if err != nil {
		return nil
	}
	defer client.Close()
	resp, err := client.Status()
	if err != nil {
		return nil
	}
	return resp
}

func databaseHealthLine(health catalog.DatabaseHealth, err error) (statusKind, string) {
	switch {
	case err != nil:
		return statusError, err.Error()
	case !health.DatabaseExists:
		return statusWarn, "database not created yet"
	case !health.TableExists:
		return statusError, "repositories table missing"
	case len(health.MissingColumns) > 0:
		return statusError, fmt.Sprintf("missing columns: %s", strings.Join(health.MissingColumns, ", "))
	case !health.IntegrityCheck:
		return statusError, "integrity check failed"
	default:
		return statusOK, fmt.Sprintf("integrity ok (%d repositories)", health.TotalRepositories)
	}
}

func toolStatusKind(tool preflight.ToolStatus) statusKind {
	switch {
	case tool.Available:
		return statusOK
	case tool.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func formatStatusTime(t time.Time) string {
	if t.IsZero() {
		return "not scheduled"
	}
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}
