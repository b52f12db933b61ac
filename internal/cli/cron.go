package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crmintctl/internal/model"
	"crmintctl/internal/schedule"
	"crmintctl/pkg/timefmt"
)

var errInvalidCron = errors.New("invalid cron expression")

func newCronCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect cron expressions the way the backend evaluates them (UTC)",
	}

	var (
		count int
		tz    string
		from  string
	)
	next := &cobra.Command{
		Use:   "next EXPR",
		Short: "Print the next fire times of an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("--tz: %w", err)
			}
			now, err := pointInTime(from, e.now)
			if err != nil {
				return err
			}
			if count <= 0 {
				count = 1
			}
			tw := newTable(cmd.OutOrStdout())
			at := now
			for i := 0; i < count; i++ {
				at, err = schedule.NextAfter(args[0], at)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n",
					at.Format(time.RFC3339),
					at.In(loc).Format("2006-01-02 15:04 MST"),
					timefmt.Calendar(at, now, loc))
			}
			return tw.Flush()
		},
	}
	next.Flags().IntVarP(&count, "count", "n", 5, "number of fire times")
	next.Flags().StringVar(&tz, "tz", "Local", "zone for the local column")
	next.Flags().StringVar(&from, "from", "", "start instant (RFC 3339); default now")

	check := &cobra.Command{
		Use:   "check EXPR",
		Short: "Validate a strict five-field expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !schedule.IsValid(args[0]) {
				if _, err := schedule.Parse(args[0]); err != nil {
					return fmt.Errorf("%w: %v", errInvalidCron, err)
				}
				return fmt.Errorf("%w: %q must have exactly 5 fields", errInvalidCron, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("valid"))
			return nil
		},
	}

	var at string
	match := &cobra.Command{
		Use:   "match EXPR",
		Short: "Report whether an instant falls on an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := pointInTime(at, e.now)
			if err != nil {
				return err
			}
			ok, err := schedule.Match(args[0], t)
			if err != nil {
				return err
			}
			verdict := color.YellowString("no match")
			if ok {
				verdict = color.GreenString("match")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s at %s\n", verdict, t.UTC().Format(time.RFC3339))
			return nil
		},
	}
	match.Flags().StringVar(&at, "at", "", "instant to test (RFC 3339); default now")

	var dueAt string
	due := &cobra.Command{
		Use:   "due",
		Short: "List run-on-schedule pipelines whose schedules match now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := pointInTime(dueAt, e.now)
			if err != nil {
				return err
			}
			a, err := e.open()
			if err != nil {
				return err
			}
			defer a.Close()

			pipelines, err := a.Backend().ListPipelines(cmd.Context())
			if err != nil {
				return err
			}
			ids := a.Evaluator().Due(pipelines, t)
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pipelines due")
				return nil
			}
			byID := make(map[int64]model.Pipeline, len(pipelines))
			for _, p := range pipelines {
				byID[p.ID] = p
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS")
			for _, id := range ids {
				p := byID[id]
				fmt.Fprintf(tw, "%d\t%s\t%s\n", id, p.Name, badge(p.Status))
			}
			return tw.Flush()
		},
	}
	due.Flags().StringVar(&dueAt, "at", "", "instant to test (RFC 3339); default now")

	cmd.AddCommand(next, check, match, due)
	return cmd
}

// pointInTime parses raw with the backend timestamp rules, or returns now.
func pointInTime(raw string, now func() time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return now(), nil
	}
	t, err := model.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	return t, nil
}
