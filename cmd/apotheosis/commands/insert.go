package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
)

var insertID string

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a fingerprint into the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		if insertID == "" {
			return fmt.Errorf("apotheosis: --id is required")
		}

		f, reg, err := openFacade()
		if err != nil {
			return err
		}

		pageID := reg.assign(insertID)
		rec := hnsw.NewHashRecord(insertID, pageID, f.Graph().Metric())

		ok, err := f.Insert(rec)
		if err != nil {
			return fmt.Errorf("apotheosis: insert: %w", err)
		}
		if !ok {
			return fmt.Errorf("apotheosis: insert rejected for %q", insertID)
		}

		if err := f.Dump(cfg.Persistence.Path, cfg.Persistence.Compress); err != nil {
			return fmt.Errorf("apotheosis: dump: %w", err)
		}
		if err := reg.save(); err != nil {
			return err
		}
		if m := f.Metrics(); m != nil {
			if err := m.Save(); err != nil {
				return fmt.Errorf("apotheosis: save metrics: %w", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "inserted %s (page %d), index now holds %d records\n", insertID, pageID, f.Graph().Size())
		return nil
	},
}

func init() {
	insertCmd.Flags().StringVar(&insertID, "id", "", "fingerprint hash string to insert")
	rootCmd.AddCommand(insertCmd)
}
