package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate [lead-id...]",
	Short: "Allocate outreach channels for scored leads",
	Long: `Assigns channels, resources, and send times for each lead. Channels are
gated by the lead's tier, regulated channels pass a do-not-contact check,
and each assignment consumes one slot on a rate-limited resource.

Decisions are printed as JSON, one object per lead; they are handed to
the execution layer, not persisted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		log := zap.L().With(zap.String("command", "allocate"))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		for _, id := range args {
			lead, err := e.Store.GetLead(ctx, id)
			if err != nil {
				return eris.Wrapf(err, "allocate: lead %s", id)
			}

			decision, err := e.Alloc.Allocate(ctx, lead)
			if err != nil {
				return eris.Wrapf(err, "allocate: lead %s", id)
			}

			log.Info("allocation decided",
				zap.String("lead_id", id),
				zap.String("status", string(decision.Status)),
				zap.Int("assignments", len(decision.Assignments)),
			)
			if err := enc.Encode(decision); err != nil {
				return eris.Wrap(err, "allocate: encode decision")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(allocateCmd)
}
