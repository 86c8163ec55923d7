package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ann-go/hnswgraph/hnsw"
	"github.com/ann-go/hnswgraph/internal/logger"
)

var (
	buildInput  string
	buildOutput string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build an HNSW index from a newline-delimited JSON vector file and write a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := uuid.New().String()
		logger.Info("build started", "run_id", runID, "input", buildInput, "output", buildOutput)

		vectors, err := readVectors(buildInput)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		params, err := paramsFromConfig()
		if err != nil {
			return err
		}

		idx, err := hnsw.New(params)
		if err != nil {
			return fmt.Errorf("creating index: %w", err)
		}

		ids, err := idx.AddBatch(vectors)
		if err != nil {
			return fmt.Errorf("inserting vectors: %w", err)
		}
		vetoed := 0
		for _, id := range ids {
			if id < 0 {
				vetoed++
			}
		}
		logger.Info("build inserted vectors", "run_id", runID, "count", len(vectors), "vetoed", vetoed)

		out, err := os.Create(buildOutput)
		if err != nil {
			return fmt.Errorf("creating snapshot file: %w", err)
		}
		defer out.Close()

		if err := idx.Serialize(out); err != nil {
			return fmt.Errorf("serializing snapshot: %w", err)
		}

		logger.Info("build wrote snapshot", "run_id", runID, "path", buildOutput)
		fmt.Printf("Indexed %d vectors (%d vetoed) -> %s\n", len(vectors), vetoed, buildOutput)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildInput, "input", "", "Path to a newline-delimited JSON file of float arrays")
	buildCmd.Flags().StringVar(&buildOutput, "output", "index.snapshot", "Path to write the resulting snapshot")
	_ = buildCmd.MarkFlagRequired("input")

	buildCmd.Flags().IntVar(&cfg.Index.MaxEdges, "max-edges", cfg.Index.MaxEdges, "M: out-degree cap for layers >= 1")
	buildCmd.Flags().Float64Var(&cfg.Index.DistributionRate, "distribution-rate", cfg.Index.DistributionRate, "mL: layer sampler scale")
	buildCmd.Flags().IntVar(&cfg.Index.EfConstruction, "ef-construction", cfg.Index.EfConstruction, "Beam width during insert")
	buildCmd.Flags().IntVar(&cfg.Index.EfSearch, "ef-search", cfg.Index.EfSearch, "Default query beam width")
	buildCmd.Flags().IntVar(&cfg.Index.CollectionSize, "collection-size", cfg.Index.CollectionSize, "Initial arena capacity hint")
	buildCmd.Flags().Int64Var(&cfg.Index.RandomSeed, "random-seed", cfg.Index.RandomSeed, "Layer-sampler seed")
	buildCmd.Flags().BoolVar(&cfg.Index.AllowRemovals, "allow-removals", cfg.Index.AllowRemovals, "Track in-edges and permit Remove")
	buildCmd.Flags().BoolVar(&cfg.Index.ZeroLayerGuaranteed, "zero-layer-guaranteed", cfg.Index.ZeroLayerGuaranteed, "Guarantee every insert reaches layer 0")
	buildCmd.Flags().StringVar(&cfg.Index.Heuristic, "heuristic", cfg.Index.Heuristic, "relative_neighborhood or naive_nearest")
	buildCmd.Flags().StringVar(&cfg.Index.Distance, "distance", cfg.Index.Distance, "cosine, squared_euclidean, or dot")
}

func paramsFromConfig() (hnsw.Params[hnsw.Vector], error) {
	dist, ok := hnsw.DistanceByName(cfg.Index.Distance)
	if !ok {
		return hnsw.Params[hnsw.Vector]{}, fmt.Errorf("unknown distance function %q", cfg.Index.Distance)
	}
	h, ok := hnsw.HeuristicByName(cfg.Index.Heuristic)
	if !ok {
		return hnsw.Params[hnsw.Vector]{}, fmt.Errorf("unknown heuristic %q", cfg.Index.Heuristic)
	}
	return hnsw.Params[hnsw.Vector]{
		MaxEdges:            cfg.Index.MaxEdges,
		DistributionRate:    cfg.Index.DistributionRate,
		EfConstruction:      cfg.Index.EfConstruction,
		EfSearch:            cfg.Index.EfSearch,
		CollectionSize:      cfg.Index.CollectionSize,
		RandomSeed:          cfg.Index.RandomSeed,
		AllowRemovals:       cfg.Index.AllowRemovals,
		ZeroLayerGuaranteed: cfg.Index.ZeroLayerGuaranteed,
		Heuristic:           h,
		Distance:            dist,
	}, nil
}

func readVectors(path string) ([]hnsw.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vectors []hnsw.Vector
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v hnsw.Vector
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("parsing vector line: %w", err)
		}
		vectors = append(vectors, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}
