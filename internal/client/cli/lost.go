package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/models"
)

// NewLostCommand lists or acknowledges operations dropped after exhausting retries
func NewLostCommand(rootOpts *RootOptions) *cobra.Command {
	var ack bool

	cmd := &cobra.Command{
		Use:   "lost [OPERATION_ID...]",
		Short: "Show operations lost after too many failed retries",
		Example: `  opsync lost
  opsync lost --ack              # acknowledge all
  opsync lost --ack op-1 op-2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && !ack {
				return fmt.Errorf("operation ids are only accepted with --ack")
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrinter(cmd.OutOrStdout(), rootOpts)

			if ack {
				removed, err := a.engine.AcknowledgeLost(cmd.Context(), args...)
				if err != nil {
					return fmt.Errorf("failed to acknowledge lost operations: %w", err)
				}
				if p.isJSON() {
					return p.JSON(map[string]int{"acknowledged": removed})
				}
				p.Printf("Acknowledged %d lost operation(s)\n", removed)
				return nil
			}

			lost := a.engine.Lost()
			if p.isJSON() {
				if lost == nil {
					lost = []*models.LostOperation{}
				}
				return p.JSON(lost)
			}
			if len(lost) == 0 {
				p.Printf("No lost operations\n")
				return nil
			}

			rows := make([][]string, 0, len(lost))
			for _, l := range lost {
				rows = append(rows, []string{
					l.Operation.ID,
					string(l.Operation.Kind),
					entityRef(l.Operation),
					strconv.Itoa(l.RetryCount),
					l.LastError,
					l.LostAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			return p.Table([]string{"OPERATION", "KIND", "ENTITY", "RETRIES", "LAST ERROR", "LOST"}, rows)
		},
	}

	cmd.Flags().BoolVar(&ack, "ack", false, "acknowledge (remove) lost operations")

	return cmd
}
