package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cached profiles",
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

		deleted, err := st.DeleteExpiredProfiles(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("cache purged", zap.Int("deleted", deleted))
		cmd.Printf("deleted %d expired cached profiles\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
