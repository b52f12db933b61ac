package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crmintctl/internal/model"
	"crmintctl/internal/schedule"
)

func newPipelinesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipelines",
		Aliases: []string{"pipeline", "p"},
		Short:   "List, start and stop pipelines",
	}
	cmd.AddCommand(newPipelinesListCommand(e), newPipelineActionCommand(e, "start"), newPipelineActionCommand(e, "stop"))
	return cmd
}

func newPipelinesListCommand(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines with status and next scheduled run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.open()
			if err != nil {
				return err
			}
			defer a.Close()

			pipelines, err := a.Backend().ListPipelines(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), pipelines)
			}
			printPipelines(cmd.OutOrStdout(), pipelines, a.Evaluator(), e.now(), a.Location())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print pipelines as JSON")
	return cmd
}

func printPipelines(w io.Writer, pipelines []model.Pipeline, ev *schedule.Evaluator, now time.Time, loc *time.Location) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSCHEDULE\tUPDATED")
	for _, p := range pipelines {
		label := "-"
		if p.RunOnSchedule {
			label = ev.Label(p, now, loc, false)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, badge(p.Status), label, ago(p.LastUpdated(), now))
	}
	_ = tw.Flush()
}

func newPipelineActionCommand(e *env, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ID",
		Short: fmt.Sprintf("Ask the backend to %s a pipeline", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid pipeline id %q", args[0])
			}
			a, err := e.open()
			if err != nil {
				return err
			}
			defer a.Close()

			action := a.StartPipeline
			if verb == "stop" {
				action = a.StopPipeline
			}
			p, err := action(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("%s pipeline %d: %w", verb, id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", pipelineName(p), badge(p.Status))
			return nil
		},
	}
}

func pipelineName(p model.Pipeline) string {
	if p.Name == "" {
		return "#" + strconv.FormatInt(p.ID, 10)
	}
	return color.New(color.Bold).Sprint(p.Name)
}
