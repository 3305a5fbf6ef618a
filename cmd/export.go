package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadqual/internal/model"
	"github.com/sells-group/leadqual/internal/store"
)

var (
	exportFormat  string
	exportStatus  string
	exportCompany string
	exportLimit   int
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			Status:  model.LeadStatus(exportStatus),
			Company: exportCompany,
			Limit:   exportLimit,
		})
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close()
			out = f
		}

		if err := writeLeads(out, leads, exportFormat); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("leads", len(leads)),
			zap.String("format", exportFormat),
		)
		return nil
	},
}

func writeLeads(w io.Writer, leads []model.Lead, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(leads), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return eris.Wrap(enc.Encode(leads), "encode yaml")
	case "csv":
		return writeLeadsCSV(w, leads)
	default:
		return eris.Errorf("unsupported format: %s (want csv, json, or yaml)", format)
	}
}

func writeLeadsCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "row", "name", "title", "company", "linkedin_url", "status", "score", "reasoning", "email_subject", "email_body", "error", "created_at"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}

	for _, lead := range leads {
		record := []string{
			lead.ID,
			strconv.Itoa(lead.Visitor.Row),
			lead.Visitor.Name(),
			lead.Visitor.Title,
			lead.Visitor.Company,
			lead.Visitor.LinkedInURL,
			string(lead.Status),
			"", "", "", "",
			lead.Error,
			lead.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if lead.Qualification != nil {
			record[7] = fmt.Sprintf("%g", lead.Qualification.Score)
			record[8] = lead.Qualification.Reasoning
		}
		if lead.Email != nil {
			record[9] = lead.Email.Subject
			record[10] = lead.Email.Body
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "write csv record")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "flush csv")
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv, json, or yaml")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by lead status")
	exportCmd.Flags().StringVar(&exportCompany, "company", "", "filter by company name")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum leads to export")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
