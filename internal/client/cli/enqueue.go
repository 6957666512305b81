package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/models"
)

// ErrInvalidPayload payload не является корректным JSON
var ErrInvalidPayload = errors.New("payload must be valid JSON")

type enqueueOptions struct {
	payload     string
	payloadFile string
	priority    string
	syncNow     bool
}

// NewEnqueueCommand records a local mutation in the operation log
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &enqueueOptions{}

	cmd := &cobra.Command{
		Use:   "enqueue KIND ENTITY_TYPE ENTITY_ID",
		Short: "Queue a create, update or delete operation",
		Example: `  opsync enqueue create products sku-1 --payload '{"name":"Milk","sku":"sku-1","price":10}'
  opsync enqueue update inventory wh-1 --payload-file delta.json --priority critical
  opsync enqueue delete orders o-17`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseOperationKind(args[0])
			if err != nil {
				return err
			}
			priority, err := models.ParsePriority(opts.priority)
			if err != nil {
				return err
			}
			payload, err := readPayload(opts)
			if err != nil {
				return err
			}
			if payload == nil && kind != models.KindDelete {
				return fmt.Errorf("%s requires --payload or --payload-file", kind)
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.engine.Enqueue(cmd.Context(), kind, args[1], args[2], payload, priority)
			if err != nil {
				return fmt.Errorf("failed to enqueue operation: %w", err)
			}

			var result *cycleSummary
			if opts.syncNow {
				result, err = syncOnce(cmd.Context(), a, 1)
				if err != nil {
					return err
				}
			}

			p := newPrinter(cmd.OutOrStdout(), rootOpts)
			if p.isJSON() {
				return p.JSON(map[string]any{
					"operation_id": id,
					"pending":      a.log.PendingCount(),
					"sync":         result,
				})
			}
			p.Printf("Queued %s %s/%s as %s (priority %s)\n", kind, args[1], args[2], id, priority)
			if result != nil {
				printSummary(p, result)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.payload, "payload", "p", "", "operation payload as a JSON document")
	cmd.Flags().StringVarP(&opts.payloadFile, "payload-file", "f", "", "read the payload from a file")
	cmd.Flags().StringVar(&opts.priority, "priority", string(models.PriorityMedium), "priority (critical|high|medium|low)")
	cmd.Flags().BoolVar(&opts.syncNow, "sync", false, "run one sync cycle right after queueing")
	cmd.MarkFlagsMutuallyExclusive("payload", "payload-file")

	return cmd
}

func readPayload(opts *enqueueOptions) ([]byte, error) {
	var data []byte
	switch {
	case opts.payloadFile != "":
		raw, err := os.ReadFile(opts.payloadFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		data = raw
	case opts.payload != "":
		data = []byte(opts.payload)
	default:
		return nil, nil
	}

	if !json.Valid(data) {
		return nil, ErrInvalidPayload
	}
	return data, nil
}
