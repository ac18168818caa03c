package main

import (
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
)

// importBatchSize caps rows per store round trip. Outcome exports
// routinely run to tens of thousands of rows.
const importBatchSize = 1000

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import data from CSV files",
}

var importLeadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Import leads from a CSV file",
	Long: `Upserts leads from a CSV file with a header row. Recognized columns:
id, tenant_id, email, email_verified, phone, linkedin_url, title,
industry, employee_count, country, hiring, recent_funding, domain.
Unknown columns are ignored; missing IDs are generated.`,
	RunE: runImportLeads,
}

var importOutcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Import outreach outcome records from a CSV file",
	Long: `Bulk-loads outcome records from a CSV file with a header row.
Required columns: tenant_id, lead_id, channel, sent_at (RFC 3339).
Optional columns: template_key, sequence_key, sequence_pos, tier,
opened, clicked, replied, meeting, converted.
Weekday and hour buckets are derived from sent_at.`,
	RunE: runImportOutcomes,
}

func init() {
	for _, c := range []*cobra.Command{importLeadsCmd, importOutcomesCmd} {
		c.Flags().String("file", "", "CSV file path (required)")
		_ = c.MarkFlagRequired("file")
		importCmd.AddCommand(c)
	}
	rootCmd.AddCommand(importCmd)
}

func runImportLeads(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path, _ := cmd.Flags().GetString("file")
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	log := zap.L().With(zap.String("command", "import leads"))

	var batch []*model.Lead
	var imported int64
	flush := func() error {
		n, err := st.UpsertLeadBatch(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "import: upsert lead batch")
		}
		imported += n
		batch = batch[:0]
		return nil
	}

	err = readCSV(path, func(col map[string]int, row []string, line int) error {
		lead := leadFromRow(col, row)
		if lead.TenantID == "" {
			return eris.Errorf("import: row %d has no tenant_id", line)
		}
		batch = append(batch, lead)
		if len(batch) >= importBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return err
		}
	}

	log.Info("import complete", zap.Int64("leads", imported))
	return nil
}

func runImportOutcomes(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path, _ := cmd.Flags().GetString("file")
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	log := zap.L().With(zap.String("command", "import outcomes"))

	var batch []model.OutcomeRecord
	var imported int64
	flush := func() error {
		n, err := st.InsertOutcomeBatch(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "import: insert outcome batch")
		}
		imported += n
		batch = batch[:0]
		return nil
	}

	err = readCSV(path, func(col map[string]int, row []string, line int) error {
		rec, err := outcomeFromRow(col, row)
		if err != nil {
			return eris.Wrapf(err, "import: row %d", line)
		}
		batch = append(batch, *rec)
		if len(batch) >= importBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return err
		}
	}

	log.Info("import complete", zap.Int64("outcomes", imported))
	return nil
}

// readCSV streams a header-mapped CSV file, calling fn per data row with
// the 1-based file line number.
func readCSV(path string, fn func(col map[string]int, row []string, line int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "import: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return eris.Wrap(err, "import: read header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "import: row %d", line)
		}
		if err := fn(col, row, line); err != nil {
			return err
		}
	}
}

func leadFromRow(col map[string]int, row []string) *model.Lead {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	getBool := func(name string) bool {
		v, _ := strconv.ParseBool(get(name))
		return v
	}
	employees, _ := strconv.Atoi(get("employee_count"))

	return &model.Lead{
		ID:            get("id"),
		TenantID:      get("tenant_id"),
		Email:         get("email"),
		EmailVerified: getBool("email_verified"),
		Phone:         get("phone"),
		LinkedInURL:   get("linkedin_url"),
		Title:         get("title"),
		Industry:      get("industry"),
		EmployeeCount: employees,
		Country:       get("country"),
		Hiring:        getBool("hiring"),
		RecentFunding: getBool("recent_funding"),
		Domain:        model.NormalizeDomain(get("domain")),
	}
}

func outcomeFromRow(col map[string]int, row []string) (*model.OutcomeRecord, error) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	getBool := func(name string) bool {
		v, _ := strconv.ParseBool(get(name))
		return v
	}

	tenantID, leadID, channel := get("tenant_id"), get("lead_id"), get("channel")
	if tenantID == "" || leadID == "" || channel == "" {
		return nil, eris.New("tenant_id, lead_id, and channel are required")
	}
	sentAt, err := time.Parse(time.RFC3339, get("sent_at"))
	if err != nil {
		return nil, eris.Wrap(err, "parse sent_at")
	}
	sentAt = sentAt.UTC()
	seqPos, _ := strconv.Atoi(get("sequence_pos"))

	return &model.OutcomeRecord{
		TenantID:    tenantID,
		LeadID:      leadID,
		Channel:     model.Channel(channel),
		TemplateKey: get("template_key"),
		SequenceKey: get("sequence_key"),
		SequencePos: seqPos,
		SentAt:      sentAt,
		Weekday:     sentAt.Weekday(),
		Hour:        sentAt.Hour(),
		Opened:      getBool("opened"),
		Clicked:     getBool("clicked"),
		Replied:     getBool("replied"),
		Meeting:     getBool("meeting"),
		Converted:   getBool("converted"),
		Tier:        model.Tier(get("tier")),
	}, nil
}
