package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
)

var (
	searchID        string
	searchK         int
	searchEf        int
	searchThreshold float64
	searchNHops     int
	searchMode      string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the index for fingerprints near --id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if searchID == "" {
			return fmt.Errorf("apotheosis: --id is required")
		}

		f, _, err := openFacade()
		if err != nil {
			return err
		}

		query := hnsw.NewHashRecord(searchID, -1, f.Graph().Metric())

		var groups []hnsw.ScoreGroup
		switch searchMode {
		case "knn":
			groups, err = f.KNNSearch(query, searchK, searchEf)
		case "threshold":
			groups, err = f.ThresholdSearch(query, searchThreshold, searchNHops)
		default:
			return fmt.Errorf("apotheosis: unknown --mode %q (want knn or threshold)", searchMode)
		}
		if err != nil {
			return fmt.Errorf("apotheosis: search: %w", err)
		}

		for _, group := range groups {
			for _, rec := range group.Records {
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f\t%s\n", group.Score, rec.ID())
			}
		}

		if m := f.Metrics(); m != nil {
			if err := m.Save(); err != nil {
				return fmt.Errorf("apotheosis: save metrics: %w", err)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchID, "id", "", "query fingerprint hash string")
	searchCmd.Flags().StringVar(&searchMode, "mode", "knn", "knn or threshold")
	searchCmd.Flags().IntVar(&searchK, "k", 10, "neighbors to return (knn mode)")
	searchCmd.Flags().IntVar(&searchEf, "ef", 0, "search breadth; 0 uses the graph's configured ef")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "score cutoff (threshold mode)")
	searchCmd.Flags().IntVar(&searchNHops, "hops", 2, "breadth-first hop budget at layer 0 (threshold mode)")
	rootCmd.AddCommand(searchCmd)
}
