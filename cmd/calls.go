package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bnema/schoolday-cli/internal/adapters/render/agenda"
	"github.com/spf13/cobra"
)

func newCallsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Show how fresh each cached call type is",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(_ context.Context, s *session) error {
				state := s.engine.Session().Calls.State()
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), state)
				}

				rendered, err := agenda.RenderCalls(state, s.ttls(), app.renderOptions())
				return writeRendered(cmd.OutOrStdout(), rendered, err)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.AddCommand(
		newCallsInvalidateCmd(app),
		newCallsAgeCmd(app),
		newCallsClearCmd(app),
	)

	return cmd
}

func newCallsInvalidateCmd(app *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "invalidate [name]",
		Short: "Mark a call type stale so the next command refetches it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("call type name or --all is required")
			}

			return app.withSession(cmd, func(_ context.Context, s *session) error {
				if all {
					s.sync.Invalidate()
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "invalidated all call types")
					return err
				}

				invalidate, ok := s.invalidators()[args[0]]
				if !ok {
					return fmt.Errorf("unknown call type %q (want one of %s)", args[0], strings.Join(s.callNames(), ", "))
				}
				invalidate()

				_, err := fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", args[0])
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Invalidate every call type")

	return cmd
}

func newCallsAgeCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "age",
		Short: "Show when the snapshot of the active profile was saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.closeFn()

			age, ok, err := s.contexts.Age(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no snapshot saved")
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "snapshot saved %s ago\n", age.Round(time.Second))
			return err
		},
	}
}

// newCallsClearCmd drops the snapshot. It does not persist afterwards, so
// the next command starts from an empty session.
func newCallsClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached result of the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.closeFn()

			if err := s.contexts.Clear(cmd.Context()); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return err
		},
	}
}

func (s *session) ttls() map[string]time.Duration {
	return map[string]time.Duration{
		s.appointments.Name(): s.appointments.TTL(),
		s.homework.Name():     s.homework.TTL(),
		s.grades.Name():       s.grades.TTL(),
		s.messages.Name():     s.messages.TTL(),
	}
}

func (s *session) invalidators() map[string]func() {
	return map[string]func(){
		s.appointments.Name(): s.appointments.Invalidate,
		s.homework.Name():     s.homework.Invalidate,
		s.grades.Name():       s.grades.Invalidate,
		s.messages.Name():     s.messages.Invalidate,
	}
}

func (s *session) callNames() []string {
	names := make([]string, 0, 4)
	for name := range s.invalidators() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
