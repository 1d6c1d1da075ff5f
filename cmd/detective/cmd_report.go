package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// reportCmd reads back the most recently persisted clusters (spec.md §6:
// fetchClusters "used by reporting flows, not the detection pipeline
// itself") without running a new detection pass.
func reportCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the most recently persisted clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := newStore(ctx)
			if err != nil {
				return fmt.Errorf("report: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			clusters, err := st.FetchClusters(ctx, limit)
			if err != nil {
				return fmt.Errorf("report: fetching clusters: %w", err)
			}

			if asJSON {
				out, err := json.MarshalIndent(clusters, "", "  ")
				if err != nil {
					return fmt.Errorf("report: marshalling clusters: %w", err)
				}
				fmt.Println(string(out))
				return nil
			}

			if len(clusters) == 0 {
				fmt.Println("No persisted clusters.")
				return nil
			}

			for i, c := range clusters {
				fmt.Printf("[%d] %s — %s (%d failures)\n", i+1, c.ID, c.FailurePattern, c.Metadata.FailureCount)
				if len(c.Metadata.RunIDs) > 0 {
					fmt.Printf("    runs: %v\n", c.Metadata.RunIDs)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum clusters to print, 0 means all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit clusters as JSON")
	return cmd
}
