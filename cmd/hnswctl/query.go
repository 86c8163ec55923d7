package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ann-go/hnswgraph/hnsw"
)

var (
	queryIndex  string
	queryVector string
	queryK      int
	queryLayer  int
	queryRadius float64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a k-nearest-neighbor or radius query against a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		var vec hnsw.Vector
		if err := json.Unmarshal([]byte(queryVector), &vec); err != nil {
			return fmt.Errorf("parsing --vector as a JSON float array: %w", err)
		}

		f, err := os.Open(queryIndex)
		if err != nil {
			return fmt.Errorf("opening snapshot: %w", err)
		}
		defer f.Close()

		dist, ok := hnsw.DistanceByName(cfg.Index.Distance)
		if !ok {
			return fmt.Errorf("unknown distance function %q", cfg.Index.Distance)
		}
		idx, err := hnsw.Deserialize[hnsw.Vector](f, dist)
		if err != nil {
			return fmt.Errorf("loading snapshot: %w", err)
		}

		if cmd.Flags().Changed("radius") {
			results, err := idx.Range(vec, float32(queryRadius), nil, queryLayer)
			if err != nil {
				return err
			}
			return printResults(results)
		}

		results, err := idx.Knn(vec, queryK, nil, queryLayer)
		if err != nil {
			return err
		}
		return printResults(results)
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryIndex, "index", "", "Path to a snapshot written by build")
	queryCmd.Flags().StringVar(&queryVector, "vector", "", "Query vector as a JSON float array, e.g. [0.1,0.2,0.3]")
	queryCmd.Flags().IntVar(&queryK, "k", 10, "Number of nearest neighbors to return")
	queryCmd.Flags().IntVar(&queryLayer, "layer", 0, "Graph layer to search")
	queryCmd.Flags().Float64Var(&queryRadius, "radius", 0, "Run a radius query instead of knn")
	queryCmd.Flags().StringVar(&cfg.Index.Distance, "distance", cfg.Index.Distance, "Distance function the snapshot was built with: cosine, squared_euclidean, or dot")
	_ = queryCmd.MarkFlagRequired("index")
	_ = queryCmd.MarkFlagRequired("vector")
}

func printResults(results []hnsw.Result[hnsw.Vector]) error {
	for _, r := range results {
		fmt.Printf("%d\t%f\n", r.ID, r.Dist)
	}
	return nil
}
