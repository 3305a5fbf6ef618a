package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/model"
	"github.com/sells-group/leadqual/internal/pipeline"
	anthropicpkg "github.com/sells-group/leadqual/pkg/anthropic"
	"github.com/sells-group/leadqual/pkg/perplexity"
)

var (
	batchCSVPath string
	batchRows    string
	batchOut     string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Qualify a CSV of website visitors",
	Long:  "Reads a visitor-tracking CSV export, captures each visitor's profile, qualifies them against the configured product, and writes qualified leads with drafted outreach emails.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		rows, err := pipeline.ParseRowSelection(batchRows)
		if err != nil {
			return err
		}

		f, err := os.Open(batchCSVPath)
		if err != nil {
			return eris.Wrapf(err, "open %s", batchCSVPath)
		}
		visitors, err := pipeline.ParseVisitors(f)
		f.Close()
		if err != nil {
			return err
		}
		visitors = pipeline.SelectRows(visitors, rows)
		if len(visitors) == 0 {
			return eris.New("no visitors selected")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

		p := pipeline.New(cfg, st, perplexityClient, anthropicClient, newSession)

		leads, err := p.RunBatch(ctx, visitors)
		if err != nil {
			return err
		}

		if batchOut != "" {
			if err := writeQualifiedCSV(batchOut, leads); err != nil {
				return err
			}
			zap.L().Info("qualified leads written", zap.String("path", batchOut))
		}

		printBatchSummary(cmd, leads)
		return nil
	},
}

// writeQualifiedCSV writes the qualified subset with their drafted
// emails, one row per lead.
func writeQualifiedCSV(path string, leads []model.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"row", "name", "title", "company", "linkedin_url", "score", "reasoning", "email_subject", "email_body"}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}

	for _, lead := range leads {
		if lead.Status != model.LeadStatusQualified {
			continue
		}
		record := []string{
			strconv.Itoa(lead.Visitor.Row),
			lead.Visitor.Name(),
			lead.Visitor.Title,
			lead.Visitor.Company,
			lead.Visitor.LinkedInURL,
			fmt.Sprintf("%g", lead.Qualification.Score),
			lead.Qualification.Reasoning,
			"",
			"",
		}
		if lead.Email != nil {
			record[7] = lead.Email.Subject
			record[8] = lead.Email.Body
		}
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "write csv record")
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func printBatchSummary(cmd *cobra.Command, leads []model.Lead) {
	var qualified, rejected, failed int
	var usage model.TokenUsage
	for _, lead := range leads {
		switch lead.Status {
		case model.LeadStatusQualified:
			qualified++
		case model.LeadStatusRejected:
			rejected++
		case model.LeadStatusFailed:
			failed++
		}
		if lead.Qualification != nil {
			usage.Add(lead.Qualification.Usage)
		}
		if lead.Email != nil {
			usage.Add(lead.Email.Usage)
		}
	}
	cmd.Printf("processed %d visitors: %d qualified, %d rejected, %d failed\n",
		len(leads), qualified, rejected, failed)
	cmd.Printf("token usage: %d in / %d out\n", usage.InputTokens, usage.OutputTokens)
}

func init() {
	batchCmd.Flags().StringVar(&batchCSVPath, "csv", "", "path to visitor CSV export (required)")
	batchCmd.Flags().StringVar(&batchRows, "rows", "", "comma-separated file line numbers to process (default all)")
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "write qualified leads with emails to this CSV")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}
