package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/learner"
	"github.com/sells-group/outreach-engine/internal/model"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Mine outcome history into patterns",
	Long: `Runs the pattern detectors over a tenant's recorded outcomes. Each kind
has its own minimum sample size; below it the run is a no-op and any
existing pattern stays active. Low-confidence results are written
inactive for review instead of being promoted.

Examples:
  # Run all four detectors
  learn --tenant acme

  # Re-derive only the component weights
  learn --tenant acme --kind who`,
	RunE: runLearn,
}

func init() {
	f := learnCmd.Flags()
	f.String("tenant", "", "tenant ID (required)")
	f.String("kind", "", "pattern kind: who, what, when, or how (default: all)")
	_ = learnCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(learnCmd)
}

func runLearn(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tenant, _ := cmd.Flags().GetString("tenant")
	kindFlag, _ := cmd.Flags().GetString("kind")

	e, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var results []learner.Result
	if kindFlag == "" {
		results, err = e.Learner.LearnAll(ctx, tenant)
		if err != nil {
			return err
		}
	} else {
		kind := model.PatternKind(kindFlag)
		switch kind {
		case model.PatternWho, model.PatternWhat, model.PatternWhen, model.PatternHow:
		default:
			return eris.Errorf("learn: unknown kind %q", kindFlag)
		}
		res, err := e.Learner.Learn(ctx, tenant, kind)
		if err != nil {
			return err
		}
		results = append(results, *res)
	}

	for _, r := range results {
		zap.L().Info("learn result",
			zap.String("tenant_id", r.TenantID),
			zap.String("kind", string(r.Kind)),
			zap.String("status", string(r.Status)),
			zap.Int("sample_size", r.SampleSize),
			zap.Float64("confidence", r.Confidence),
		)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
