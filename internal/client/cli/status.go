package cli

import (
	"github.com/spf13/cobra"
)

// NewStatusCommand prints the local sync state
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			state := a.engine.State()
			p := newPrinter(cmd.OutOrStdout(), rootOpts)
			if p.isJSON() {
				return p.JSON(map[string]any{
					"device_id":      state.DeviceID,
					"server":         a.cfg.Server,
					"strategy":       a.resolver.Strategy(),
					"pending":        state.Pending,
					"open_conflicts": state.OpenConflicts,
					"lost":           state.Lost,
					"last_sync_at":   state.LastSyncAt,
				})
			}

			p.Printf("Device:         %s\n", state.DeviceID)
			p.Printf("Server:         %s\n", a.cfg.Server)
			p.Printf("Strategy:       %s\n", a.resolver.Strategy())
			p.Printf("Pending:        %d\n", state.Pending)
			p.Printf("Open conflicts: %d\n", state.OpenConflicts)
			p.Printf("Lost:           %d\n", state.Lost)
			p.Printf("Last sync:      %s\n", formatTime(state.LastSyncAt))
			return nil
		},
	}
}
