package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	deltaKindAppointment = "appointment"
	deltaKindHomework    = "homework"

	maxDeltaLine = 1 << 20
)

// newDeltaCmd merges pushed changes read from stdin, one JSON item per line,
// in the wire format of the list endpoints. Items for weeks that were never
// fetched and lines that do not decode are dropped.
func newDeltaCmd(app *app) *cobra.Command {
	var kind string
	var removed bool

	cmd := &cobra.Command{
		Use:   "delta",
		Short: "Apply pushed timetable or homework changes from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind != deltaKindAppointment && kind != deltaKindHomework {
				return fmt.Errorf("unsupported delta kind %q (want %s or %s)", kind, deltaKindAppointment, deltaKindHomework)
			}

			return app.withSession(cmd, func(_ context.Context, s *session) error {
				apply := func(raw []byte) (bool, error) {
					if kind == deltaKindHomework {
						item, err := s.homework.DecodeDelta(raw)
						if err != nil {
							return false, err
						}
						return s.homework.ApplyDelta(item, removed), nil
					}

					item, err := s.appointments.DecodeDelta(raw)
					if err != nil {
						return false, err
					}
					return s.appointments.ApplyDelta(item, removed), nil
				}

				applied, dropped, err := applyDeltaLines(cmd, app.logger.With(zap.String("kind", kind)), apply)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d, dropped %d\n", applied, dropped)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", deltaKindAppointment, "Item kind (appointment|homework)")
	cmd.Flags().BoolVar(&removed, "removed", false, "Treat every item as deleted")

	return cmd
}

// applyDeltaLines feeds every non-empty stdin line to apply. Lines that do
// not decode are dropped like deltas for unknown weeks; only a read failure
// stops the stream.
func applyDeltaLines(cmd *cobra.Command, logger *zap.Logger, apply func([]byte) (bool, error)) (int, int, error) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), maxDeltaLine)

	applied, dropped := 0, 0
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		ok, err := apply(raw)
		if err != nil {
			logger.Debug("dropping undecodable delta", zap.Int("line", line), zap.Error(err))
		}
		if ok {
			applied++
		} else {
			dropped++
		}
	}
	if err := scanner.Err(); err != nil {
		return applied, dropped, fmt.Errorf("read deltas: %w", err)
	}

	return applied, dropped, nil
}
