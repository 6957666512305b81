package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeviceCommand fetches server-side counters for a device
func NewDeviceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "device [DEVICE_ID]",
		Short: "Show server-side sync counters for a device (default: this device)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			deviceID := a.log.DeviceID()
			if len(args) == 1 {
				deviceID = args[0]
			}

			status, err := a.client.DeviceStatus(cmd.Context(), deviceID)
			if err != nil {
				return fmt.Errorf("failed to get device status: %w", err)
			}

			p := newPrinter(cmd.OutOrStdout(), rootOpts)
			if p.isJSON() {
				return p.JSON(status)
			}
			p.Printf("Device:     %s\n", status.DeviceID)
			p.Printf("Operations: %d\n", status.OperationCount)
			p.Printf("Conflicts:  %d\n", status.ConflictCount)
			p.Printf("Last sync:  %s\n", formatTime(&status.LastSyncAt))
			return nil
		},
	}
}
