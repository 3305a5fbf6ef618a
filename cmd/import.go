package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/model"
	"github.com/sells-group/leadqual/internal/pipeline"
	"github.com/sells-group/leadqual/internal/store"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a visitor CSV as pending leads",
	Long:  "Loads a visitor-tracking CSV export into the store as pending leads without qualifying them, so a later batch run can work through the backlog.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrapf(err, "open %s", importCSVPath)
		}
		visitors, err := pipeline.ParseVisitors(f)
		f.Close()
		if err != nil {
			return err
		}
		visitors = pipeline.FilterResearchable(visitors)
		if len(visitors) == 0 {
			return eris.New("no importable visitors in csv")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		now := time.Now().UTC()
		leads := make([]model.Lead, len(visitors))
		for i, v := range visitors {
			leads[i] = model.Lead{
				Visitor:   v,
				Status:    model.LeadStatusPending,
				CreatedAt: now,
			}
		}

		// Postgres takes the batch in one round trip; sqlite inserts
		// row by row.
		if pg, ok := st.(*store.PostgresStore); ok {
			n, err := pg.BulkSaveLeads(ctx, leads)
			if err != nil {
				return eris.Wrap(err, "bulk import")
			}
			zap.L().Info("import complete", zap.Int64("imported", n), zap.String("csv", importCSVPath))
			return nil
		}

		for i := range leads {
			if err := st.SaveLead(ctx, &leads[i]); err != nil {
				return eris.Wrapf(err, "import row %d", leads[i].Visitor.Row)
			}
		}
		zap.L().Info("import complete", zap.Int("imported", len(leads)), zap.String("csv", importCSVPath))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to visitor CSV export (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
