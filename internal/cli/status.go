package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crmintctl/internal/app"
	"crmintctl/internal/eventbus"
	"crmintctl/internal/tasksinfo"
)

func newStatusCommand(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the backend task queue (oldest pending task, running count)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.open()
			if err != nil {
				return err
			}
			defer a.Close()

			info, ferr := a.Backend().GetTasksInfo(cmd.Context())
			snap := tasksinfo.BuildSnapshot(info, ferr, a.TimeZone(), e.now())
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), snap); err != nil {
					return err
				}
			} else {
				printSnapshot(cmd.OutOrStdout(), snap, a.Location())
			}
			return ferr
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func printSnapshot(w io.Writer, snap tasksinfo.Snapshot, loc *time.Location) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Running tasks:\t%s\n", humanize.Comma(int64(snap.RunningTasksCount)))
	if snap.OldestTaskTime != nil {
		at := snap.OldestTaskTime.In(loc).Format("2006-01-02 15:04:05")
		fmt.Fprintf(tw, "Oldest task:\t%s %s (%s ago)\n", at, snap.TimeZone, snap.TimeSinceOldest)
	} else {
		fmt.Fprintf(tw, "Oldest task:\t%s\n", "none")
	}
	if snap.LastError != "" {
		fmt.Fprintf(tw, "Last error:\t%s\n", color.RedString(snap.LastError))
	}
	_ = tw.Flush()
}

func newWatchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the poller, alerts and debug server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.open()
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func runWatch(ctx context.Context, a *app.App, w io.Writer) error {
	events, unsub := a.Bus().Subscribe(16, eventbus.TasksInfoUpdated, eventbus.TasksInfoFailed)
	defer unsub()

	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background())
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.Done():
			return a.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if snap, ok := ev.Data.(tasksinfo.Snapshot); ok {
				fmt.Fprintln(w, snapshotLine(snap))
			}
		}
	}
}

func snapshotLine(snap tasksinfo.Snapshot) string {
	ts := snap.UpdatedAt.Format("15:04:05")
	if snap.LastError != "" {
		return fmt.Sprintf("%s %s %s", ts, color.RedString("fetch failed:"), snap.LastError)
	}
	if snap.OldestTaskTime == nil {
		return fmt.Sprintf("%s running=%s oldest=none", ts, humanize.Comma(int64(snap.RunningTasksCount)))
	}
	return fmt.Sprintf("%s running=%s oldest=%s ago (%s)", ts,
		humanize.Comma(int64(snap.RunningTasksCount)), snap.TimeSinceOldest, snap.TimeZone)
}
