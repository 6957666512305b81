package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/client/sync"
)

// NewRunCommand starts the background scheduler and streams engine events
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrinter(cmd.OutOrStdout(), rootOpts)
			return runScheduler(ctx, a, p)
		},
	}
}

func runScheduler(ctx context.Context, a *app, p *printer) error {
	a.engine.Start(ctx)
	defer a.engine.Shutdown()

	// первый цикл не ждет тикера
	a.engine.RequestSync()

	events := a.engine.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := printEvent(p, ev); err != nil {
				return err
			}
		}
	}
}

func printEvent(p *printer, ev sync.Event) error {
	if p.isJSON() {
		out := map[string]any{
			"type":         ev.Type,
			"operation_id": ev.OperationID,
		}
		switch ev.Type {
		case sync.EventOnlineChanged:
			out["online"] = ev.Online
		case sync.EventConflictDetected, sync.EventConflictResolved:
			out["conflict"] = ev.Conflict
		case sync.EventOperationLost:
			out["lost"] = ev.Lost
		}
		if ev.Err != nil {
			out["error"] = ev.Err.Error()
		}
		return p.JSON(out)
	}

	switch ev.Type {
	case sync.EventOnlineChanged:
		if ev.Online {
			p.Printf("online\n")
		} else {
			p.Printf("offline\n")
		}
	case sync.EventConflictDetected:
		p.Printf("conflict %s: %s (%s)\n", ev.OperationID, ev.Conflict.ConflictKind, ev.Conflict.Resolution)
	case sync.EventConflictResolved:
		p.Printf("conflict %s resolved: %s\n", ev.OperationID, ev.Conflict.Resolution)
	case sync.EventOperationLost:
		p.Printf("lost %s: %s\n", ev.OperationID, ev.Lost.LastError)
	default:
		p.Printf("%s %s\n", ev.Type, ev.OperationID)
	}
	return nil
}
