package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/pipeline"
)

var (
	scrapeMaxAttempts int
	scrapeHeadful     bool
	scrapeFlat        bool
	scrapeOut         string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <linkedin-url>",
	Short: "Capture and extract a single profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if scrapeMaxAttempts > 0 {
			cfg.Capture.MaxAttempts = scrapeMaxAttempts
		}
		if scrapeHeadful {
			cfg.Capture.Headless = false
		}
		if err := cfg.Validate("scrape"); err != nil {
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

		p := pipeline.New(cfg, st, nil, nil, newSession)

		profileURL := pipeline.NormalizeLinkedInURL(args[0])
		if profileURL == "" {
			return eris.Errorf("invalid profile url: %s", args[0])
		}

		rec, err := p.CaptureProfile(ctx, profileURL)
		if err != nil {
			return err
		}

		var out any = rec
		if scrapeFlat {
			row, err := rec.FlatRow()
			if err != nil {
				return err
			}
			out = row
		}

		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode profile")
		}

		if scrapeOut == "" || scrapeOut == "-" {
			cmd.Println(string(encoded))
			return nil
		}
		if err := os.WriteFile(scrapeOut, append(encoded, '\n'), 0o644); err != nil {
			return eris.Wrapf(err, "write %s", scrapeOut)
		}
		zap.L().Info("profile written", zap.String("path", scrapeOut))
		return nil
	},
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeMaxAttempts, "max-attempts", 0, "override capture attempt budget")
	scrapeCmd.Flags().BoolVar(&scrapeHeadful, "headful", false, "run the browser with a visible window")
	scrapeCmd.Flags().BoolVar(&scrapeFlat, "flat", false, "emit the flattened single-row form")
	scrapeCmd.Flags().StringVarP(&scrapeOut, "out", "o", "", "output path (default stdout)")
	rootCmd.AddCommand(scrapeCmd)
}
