package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ann-go/hnswgraph/hnsw"
)

var infoIndex string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print per-layer node counts and degree statistics for a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(infoIndex)
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

		info, err := idx.Info()
		if err != nil {
			return err
		}

		layers := make([]int, 0, len(info.Layers))
		for l := range info.Layers {
			layers = append(layers, l)
		}
		sort.Ints(layers)

		for _, l := range layers {
			s := info.Layers[l]
			fmt.Printf("layer %d: nodes=%d out[min=%d max=%d avg=%.2f median=%.2f] in[min=%d max=%d avg=%.2f median=%.2f]\n",
				l, s.NodeCount,
				s.MinOutDegree, s.MaxOutDegree, s.AvgOutDegree, s.MedianOutDegree,
				s.MinInDegree, s.MaxInDegree, s.AvgInDegree, s.MedianInDegree)
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoIndex, "index", "", "Path to a snapshot written by build")
	infoCmd.Flags().StringVar(&cfg.Index.Distance, "distance", cfg.Index.Distance, "Distance function the snapshot was built with: cosine, squared_euclidean, or dot")
	_ = infoCmd.MarkFlagRequired("index")
}
