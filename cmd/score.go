package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score [lead-id...]",
	Short: "Score leads and assign tiers",
	Long: `Computes the 0-100 composite score for one or more leads from the five
weighted components (quality, authority, fit, timing, risk) and maps it
to a tier. Weights resolve through the fallback hierarchy: tenant-learned,
industry, global, benchmark, default.

Examples:
  # Score two leads and print a table
  score 7c9e1a3f 8d0f2b4e

  # Score and persist onto the lead rows
  score 7c9e1a3f --save

  # Export a batch to a spreadsheet
  score --file ids.txt --format xlsx --output scores.xlsx`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("file", "", "file with one lead ID per line")
	f.String("format", "table", "output format: table, csv, or xlsx")
	f.String("output", "", "output file path (default: stdout; required for xlsx)")
	f.Bool("save", false, "persist score, tier, and components onto the lead")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	idFile, _ := cmd.Flags().GetString("file")
	save, _ := cmd.Flags().GetBool("save")

	switch format {
	case "table", "csv", "xlsx":
	default:
		return eris.Errorf("score: --format must be table, csv, or xlsx (got %q)", format)
	}
	if format == "xlsx" && outputPath == "" {
		return eris.New("score: --output is required with --format xlsx")
	}

	ids := args
	if idFile != "" {
		fileIDs, err := readLines(idFile)
		if err != nil {
			return err
		}
		ids = append(ids, fileIDs...)
	}
	if len(ids) == 0 {
		return eris.New("score: no lead IDs given")
	}

	e, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	log := zap.L().With(zap.String("command", "score"))

	var results []*scoring.Result
	if save {
		for _, id := range ids {
			res, err := e.Scorer.ScoreLead(ctx, id)
			if err != nil {
				return eris.Wrapf(err, "score: lead %s", id)
			}
			results = append(results, res)
		}
	} else {
		results, err = e.Scorer.ScoreBatch(ctx, ids)
		if err != nil {
			return err
		}
	}

	log.Info("scoring complete", zap.Int("leads", len(results)), zap.Bool("saved", save))

	switch format {
	case "csv":
		return writeScoresCSV(results, outputPath)
	case "xlsx":
		return writeScoresXLSX(results, outputPath)
	default:
		printScoresTable(results)
		return nil
	}
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "score: read %s", path)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func printScoresTable(results []*scoring.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LEAD\tSCORE\tTIER\tQUALITY\tAUTHORITY\tFIT\tTIMING\tRISK\tWEIGHTS")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%s\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\t%s\n",
			r.LeadID, r.Score, r.Tier,
			r.Components.Quality, r.Components.Authority, r.Components.Fit,
			r.Components.Timing, r.Components.Risk, r.Provenance,
		)
	}
	w.Flush()
}

func scoreRows(results []*scoring.Result) [][]string {
	rows := [][]string{{"lead_id", "score", "tier", "quality", "authority", "fit", "timing", "risk", "weight_provenance", "weight_set_id"}}
	for _, r := range results {
		rows = append(rows, []string{
			r.LeadID,
			strconv.Itoa(r.Score),
			string(r.Tier),
			strconv.FormatFloat(r.Components.Quality, 'f', 0, 64),
			strconv.FormatFloat(r.Components.Authority, 'f', 0, 64),
			strconv.FormatFloat(r.Components.Fit, 'f', 0, 64),
			strconv.FormatFloat(r.Components.Timing, 'f', 0, 64),
			strconv.FormatFloat(r.Components.Risk, 'f', 0, 64),
			string(r.Provenance),
			r.WeightSetID,
		})
	}
	return rows
}

func writeScoresCSV(results []*scoring.Result, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "score: create %s", path)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.WriteAll(scoreRows(results)); err != nil {
		return eris.Wrap(err, "score: write csv")
	}
	return nil
}

func writeScoresXLSX(results []*scoring.Result, path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Scores")
	if err != nil {
		return eris.Wrap(err, "score: add sheet")
	}
	for _, row := range scoreRows(results) {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().Value = cell
		}
	}
	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "score: save %s", path)
	}
	return nil
}
