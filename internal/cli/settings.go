package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crmintctl/internal/model"
	"crmintctl/internal/settings"
)

// loadSession opens the app and loads the backend configuration.
func loadSession(ctx context.Context, e *env) (*settings.Session, func(), error) {
	a, err := e.open()
	if err != nil {
		return nil, nil, err
	}
	s := a.Session()
	if err := s.Load(ctx); err != nil {
		_ = a.Close()
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	return s, func() { _ = a.Close() }, nil
}

func await(ctx context.Context, ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newSettingsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and edit general settings",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List general settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, done, err := loadSession(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer done()

			conf := s.Configuration()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service account: %s\n", conf.SAEmail)
			if conf.GoogleAdsAuthURL != "" {
				fmt.Fprintf(out, "Google Ads auth: %s\n", conf.GoogleAdsAuthURL)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "NAME\tVALUE")
			for _, st := range s.Settings().Values() {
				fmt.Fprintf(tw, "%s\t%s\n", st.Name, orDash(st.Value))
			}
			return tw.Flush()
		},
	}

	set := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Change one general setting and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := loadSession(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer done()

			ed := s.Settings()
			i := indexOf(ed.Values(), args[0], func(st model.Setting) string { return st.Name })
			if i < 0 {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			if err := ed.Update(i, func(st *model.Setting) { st.Value = args[1] }); err != nil {
				return err
			}
			if err := await(cmd.Context(), s.SaveSettings(cmd.Context())); err != nil {
				return fmt.Errorf("save settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", color.GreenString("saved"), args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(list, set)
	return cmd
}

func newVarsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vars",
		Aliases: []string{"variables"},
		Short:   "Show and edit global variables",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List global variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, done, err := loadSession(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer done()

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "NAME\tTYPE\tVALUE")
			for _, v := range s.Variables().Values() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Name, orDash(v.Type), orDash(v.Value))
			}
			return tw.Flush()
		},
	}

	var setType string
	set := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Change an existing variable and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editVariables(cmd, e, func(s *settings.Session) error {
				ed := s.Variables()
				i := indexOf(ed.Values(), args[0], paramName)
				if i < 0 {
					return fmt.Errorf("unknown variable %q", args[0])
				}
				return ed.Update(i, func(p *model.Param) {
					p.Value = args[1]
					if setType != "" {
						p.Type = setType
					}
				})
			})
		},
	}
	set.Flags().StringVar(&setType, "type", "", "change the variable type")

	var addType string
	add := &cobra.Command{
		Use:   "add NAME VALUE",
		Short: "Add a variable and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := model.CheckName(args[0]); err != nil {
				return err
			}
			return editVariables(cmd, e, func(s *settings.Session) error {
				ed := s.Variables()
				if indexOf(ed.Values(), args[0], paramName) >= 0 {
					return fmt.Errorf("variable %q already exists", args[0])
				}
				i := ed.Add()
				return ed.Update(i, func(p *model.Param) {
					p.Name = args[0]
					p.Value = args[1]
					if addType != "" {
						p.Type = addType
					}
				})
			})
		},
	}
	add.Flags().StringVar(&addType, "type", model.DefaultParamType, "variable type")

	remove := &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a variable and save",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editVariables(cmd, e, func(s *settings.Session) error {
				ed := s.Variables()
				i := indexOf(ed.Values(), args[0], paramName)
				if i < 0 {
					return fmt.Errorf("unknown variable %q", args[0])
				}
				return ed.RemoveAt(i)
			})
		},
	}

	cmd.AddCommand(list, set, add, remove)
	return cmd
}

func editVariables(cmd *cobra.Command, e *env, edit func(*settings.Session) error) error {
	s, done, err := loadSession(cmd.Context(), e)
	if err != nil {
		return err
	}
	defer done()

	if err := edit(s); err != nil {
		return err
	}
	if err := await(cmd.Context(), s.SaveVariables(cmd.Context())); err != nil {
		return fmt.Errorf("save variables: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d variables\n", color.GreenString("saved"), s.Variables().Len())
	return nil
}

func newResetCommand(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset pipeline statuses and clear queued tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset statuses without --yes")
			}
			a, err := e.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session().ResetStatusesAndClearTasks(cmd.Context()); err != nil {
				return fmt.Errorf("reset statuses: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("statuses reset, tasks cleared"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}

func paramName(p model.Param) string { return p.Name }

func indexOf[T any](rows []T, name string, key func(T) string) int {
	for i, r := range rows {
		if strings.EqualFold(key(r), name) {
			return i
		}
	}
	return -1
}
