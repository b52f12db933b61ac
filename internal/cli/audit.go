package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crmintctl/internal/storage"
)

func newAuditCommand(e *env) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent operator actions from the audit store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 || limit > 1000 {
				return errors.New("--limit must be between 1 and 1000")
			}
			a, err := e.open()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Store().RecentAudit(cmd.Context(), limit)
			if errors.Is(err, storage.ErrDisabled) {
				return errors.New("audit store disabled; set storage.driver in the config")
			}
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []storage.AuditEntry{}
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			now := e.now()
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "WHEN\tACTOR\tACTION\tTARGET\tRESULT\tTOOK")
			for _, en := range entries {
				result := okText(en.OK)
				if en.Error != "" {
					result += " " + en.Error
				}
				took := (time.Duration(en.TookMS) * time.Millisecond).String()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					ago(en.At, now), orDash(en.Actor), en.Action, orDash(en.Target), result, took)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}
