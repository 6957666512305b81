package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/models"
)

// NewConflictsCommand lists conflicts waiting for a manual decision
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List conflicts queued for manual resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			records := a.engine.Conflicts(!all)
			p := newPrinter(cmd.OutOrStdout(), rootOpts)
			if p.isJSON() {
				if records == nil {
					records = []*models.ConflictRecord{}
				}
				return p.JSON(records)
			}
			if len(records) == 0 {
				p.Printf("No conflicts\n")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.OperationID,
					string(rec.ConflictKind),
					entityRef(rec.LocalOperation),
					remoteDevice(rec.RemoteOperation),
					string(rec.Resolution),
					rec.DetectedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			return p.Table([]string{"OPERATION", "KIND", "ENTITY", "REMOTE DEVICE", "RESOLUTION", "DETECTED"}, rows)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include resolved conflicts")

	return cmd
}

// NewResolveCommand applies a manual decision to an open conflict
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve OPERATION_ID local_wins|remote_wins",
		Short: "Resolve a conflict",
		Long: `Resolve a conflict queued for manual decision.

local_wins requeues the local operation so it overrides the remote one;
remote_wins discards the local operation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolution, err := models.ParseManualResolution(args[1])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.ResolveConflict(cmd.Context(), args[0], resolution); err != nil {
				return fmt.Errorf("failed to resolve conflict: %w", err)
			}

			p := newPrinter(cmd.OutOrStdout(), rootOpts)
			if p.isJSON() {
				return p.JSON(map[string]any{
					"operation_id": args[0],
					"resolution":   resolution,
				})
			}
			p.Printf("Conflict %s resolved: %s\n", args[0], resolution)
			return nil
		},
	}
}

func entityRef(op *models.Operation) string {
	if op == nil {
		return "-"
	}
	return op.EntityType + "/" + op.EntityID
}

func remoteDevice(op *models.Operation) string {
	if op == nil || op.DeviceID == "" {
		return "-"
	}
	return op.DeviceID
}
