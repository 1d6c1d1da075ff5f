package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flakysignal/detective/internal/apperrors"
	"github.com/flakysignal/detective/internal/pipeline"
)

func detectCmd() *cobra.Command {
	var (
		days        int
		epsilon     float64
		minPoints   int
		minCluster  int
		maxClusters int
		distance    string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run one detection pass and persist the resulting clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if !cmd.Flags().Changed("days") {
				days = cfg.TimeWindow.Days
			}
			if !cmd.Flags().Changed("epsilon") {
				epsilon = cfg.Clustering.Epsilon
			}
			if !cmd.Flags().Changed("min-points") {
				minPoints = cfg.Clustering.MinPoints
			}
			if !cmd.Flags().Changed("min-cluster-size") {
				minCluster = cfg.Clustering.MinClusterSize
			}
			if !cmd.Flags().Changed("max-clusters") {
				maxClusters = cfg.Clustering.MaxClusters
			}
			if !cmd.Flags().Changed("distance") {
				distance = cfg.Clustering.Distance
			}

			st, err := newStore(ctx)
			if err != nil {
				return fmt.Errorf("detect: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			prov, err := newProvider(ctx, logger)
			if err != nil {
				return err
			}

			pl := pipeline.New(st, prov, pipeline.ClusteringParams{
				Epsilon:        epsilon,
				MinPoints:      minPoints,
				MinClusterSize: minCluster,
				MaxClusters:    maxClusters,
				Distance:       distance,
			})
			pl.Logger = logger

			clusters, err := pl.Detect(ctx, days)
			if err != nil {
				return err
			}

			if asJSON {
				out, err := json.MarshalIndent(clusters, "", "  ")
				if err != nil {
					return apperrors.Validation("marshalling clusters: %v", err)
				}
				fmt.Println(string(out))
				return nil
			}

			if len(clusters) == 0 {
				fmt.Println("No clusters found.")
				return nil
			}

			for i, c := range clusters {
				fmt.Printf("[%d] %s — %s (%d failures)\n", i+1, c.ID, c.FailurePattern, c.Metadata.FailureCount)
				if c.HasAssertionPattern {
					fmt.Printf("    %s\n", c.AssertionPattern)
				}
				fmt.Printf("    first seen %s, last seen %s\n", c.Metadata.FirstSeen.Format("2006-01-02T15:04:05Z07:00"), c.Metadata.LastSeen.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "time window in days (default: configured time_window.days)")
	cmd.Flags().Float64Var(&epsilon, "epsilon", 0.15, "DBSCAN epsilon (default: configured clustering.epsilon)")
	cmd.Flags().IntVar(&minPoints, "min-points", 2, "DBSCAN minPoints (default: configured clustering.min_points)")
	cmd.Flags().IntVar(&minCluster, "min-cluster-size", 2, "minimum cluster size (default: configured clustering.min_cluster_size)")
	cmd.Flags().IntVar(&maxClusters, "max-clusters", 5, "maximum clusters returned, 0 means unlimited (default: configured clustering.max_clusters)")
	cmd.Flags().StringVar(&distance, "distance", "cosine", "distance function: cosine|euclidean (default: configured clustering.distance)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit clusters as JSON")
	return cmd
}
