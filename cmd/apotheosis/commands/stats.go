package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsWindow string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the index's size, configuration, and recent operation timings",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, _, err := openFacade()
		if err != nil {
			return err
		}

		graph := f.Graph()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "snapshot:  %s\n", cfg.Persistence.Path)
		fmt.Fprintf(out, "metric:    %s\n", graph.Metric().Name())
		fmt.Fprintf(out, "records:   %d\n", graph.Size())
		fmt.Fprintf(out, "layers:    %v\n", graph.LayersAscending())
		fmt.Fprintf(out, "m/ef:      %d/%d\n", cfg.Graph.M, cfg.Graph.Ef)

		if m := f.Metrics(); m != nil {
			window, err := parseStatsWindow(statsWindow)
			if err != nil {
				return err
			}
			dash := m.GetDashboard(window)
			fmt.Fprintf(out, "\noperations (%s): %d\n", statsWindow, dash.TotalOps)
			for op, s := range dash.ByOperation {
				fmt.Fprintf(out, "  %-18s count=%-6d avg=%-10s p95=%-10s max=%s\n",
					op, s.Count, s.AvgDuration, s.P95Duration, s.MaxDuration)
			}
			if len(dash.SlowOps) > 0 {
				fmt.Fprintf(out, "slow operations (exceeded their operation's threshold):\n")
				for _, s := range dash.SlowOps {
					fmt.Fprintf(out, "  %-18s %s at %s\n", s.Operation, s.Duration, s.Timestamp.Format("15:04:05"))
				}
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsWindow, "window", "all", "timing window: all, 1h, 24h, or a Go duration like 90m")
	rootCmd.AddCommand(statsCmd)
}
