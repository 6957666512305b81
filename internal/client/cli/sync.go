package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// cycleSummary суммарный итог нескольких циклов
type cycleSummary struct {
	TransportError string `json:"transport_error,omitempty"`
	Cycles         int    `json:"cycles"`
	Sent           int    `json:"sent"`
	Synced         int    `json:"synced"`
	Conflicts      int    `json:"conflicts"`
	Failed         int    `json:"failed"`
	Lost           int    `json:"lost"`
	Pending        int    `json:"pending"`
	Online         bool   `json:"online"`
}

// syncOnce проверяет доступность сервера и гоняет циклы, пока есть что отправлять
func syncOnce(ctx context.Context, a *app, maxCycles int) (*cycleSummary, error) {
	summary := &cycleSummary{Online: true}

	if err := a.client.Health(ctx); err != nil {
		a.logger.Warn("Server unreachable", "server", a.cfg.Server, "error", err)
		a.engine.SetOnline(false)
		summary.Online = false
		summary.TransportError = err.Error()
		summary.Pending = a.log.PendingCount()
		return summary, nil
	}

	for summary.Cycles < maxCycles {
		result, err := a.engine.RunSyncCycle(ctx)
		if err != nil {
			return nil, fmt.Errorf("sync cycle failed: %w", err)
		}
		if result.Skipped {
			break
		}
		summary.Cycles++
		summary.Sent += result.Sent
		summary.Synced += result.Synced
		summary.Conflicts += result.Conflicts
		summary.Failed += result.Failed
		summary.Lost += result.Lost

		if result.TransportError != "" {
			summary.TransportError = result.TransportError
			break
		}
		if result.Sent == 0 {
			break
		}
	}

	summary.Pending = a.log.PendingCount()
	return summary, nil
}

func printSummary(p *printer, s *cycleSummary) {
	if !s.Online {
		p.Printf("Offline: %s\n%d operation(s) stay queued\n", s.TransportError, s.Pending)
		return
	}
	p.Printf("Sent %d, synced %d, conflicts %d, failed %d, lost %d (%d cycle(s))\n",
		s.Sent, s.Synced, s.Conflicts, s.Failed, s.Lost, s.Cycles)
	if s.TransportError != "" {
		p.Printf("Batch rejected: %s\n", s.TransportError)
	}
	p.Printf("Pending: %d\n", s.Pending)
}

// NewSyncCommand runs sync cycles until the log has nothing ready to send
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var maxCycles int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Send queued operations to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxCycles <= 0 {
				return fmt.Errorf("--max-cycles must be positive")
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := syncOnce(cmd.Context(), a, maxCycles)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), rootOpts)
			if p.isJSON() {
				return p.JSON(summary)
			}
			printSummary(p, summary)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxCycles, "max-cycles", 10, "maximum number of batches to send")

	return cmd
}
