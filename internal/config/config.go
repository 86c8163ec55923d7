// Package config loads the runtime-mutable parameters of spec.md §6
// from an optional YAML file, then environment variables, in the
// teacher's layered style: the file (if any) supplies defaults,
// environment variables override it, and every lookup has a
// hard-coded fallback so the zero-argument case always produces a
// usable Config. Command-line flags are layered on top of all of this
// by cobra/pflag in cmd/hnswctl.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables that shape an hnsw.Index, plus the ambient
// process configuration (logging, storage paths) carried over from the
// teacher's layout.
type Config struct {
	// ServerName/Version identify the process in structured logs.
	ServerName string
	Version    string

	// LogLevel is "debug", "info", "warn", or "error".
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string

	// DataDir is where cmd/hnswctl reads/writes snapshot files.
	DataDir string

	// Index holds the spec.md §6 parameter set.
	Index IndexConfig
}

// IndexConfig mirrors spec.md §6's parameter list one field at a time.
type IndexConfig struct {
	// MaxEdges is M: the out-degree cap for layers ≥ 1 (base layer
	// allows 2M).
	MaxEdges int

	// DistributionRate is mL, the layer-sampler scale.
	DistributionRate float64

	// EfConstruction is the beam width used while inserting/updating.
	EfConstruction int

	// EfSearch is the default beam width for queries (min_nn).
	EfSearch int

	// CollectionSize is the initial capacity hint for the arena.
	CollectionSize int

	// RandomSeed seeds the layer sampler; negative means OS entropy.
	RandomSeed int64

	// AllowRemovals gates whether in-edges are tracked and whether
	// Remove is permitted at all.
	AllowRemovals bool

	// ZeroLayerGuaranteed controls whether every insert gets at least
	// layer 0, or can be vetoed by the layer draw.
	ZeroLayerGuaranteed bool

	// Heuristic names the neighbor-selection strategy: "relative_neighborhood"
	// (default) or "naive_nearest".
	Heuristic string

	// Distance names the built-in distance function: "cosine",
	// "squared_euclidean", or "dot".
	Distance string
}

// fileConfig mirrors Config for optional YAML file loading. Every
// field is a pointer so a file can override a subset of settings;
// anything left unset falls through to the existing default.
type fileConfig struct {
	ServerName *string        `yaml:"server_name"`
	LogLevel   *string        `yaml:"log_level"`
	LogFormat  *string        `yaml:"log_format"`
	DataDir    *string        `yaml:"data_dir"`
	Index      *fileIndexPart `yaml:"index"`
}

type fileIndexPart struct {
	MaxEdges            *int     `yaml:"max_edges"`
	DistributionRate    *float64 `yaml:"distribution_rate"`
	EfConstruction      *int     `yaml:"ef_construction"`
	EfSearch            *int     `yaml:"ef_search"`
	CollectionSize      *int     `yaml:"collection_size"`
	RandomSeed          *int64   `yaml:"random_seed"`
	AllowRemovals       *bool    `yaml:"allow_removals"`
	ZeroLayerGuaranteed *bool    `yaml:"zero_layer_guaranteed"`
	Heuristic           *string  `yaml:"heuristic"`
	Distance            *string  `yaml:"distance"`
}

// Load builds a Config. version is stamped into Config.Version
// verbatim (cmd/hnswctl passes its build-time version string).
//
// Precedence, lowest to highest: hard-coded default, the YAML file
// named by HNSW_CONFIG_FILE (if set and readable), individual
// HNSW_* environment variables, then whatever cmd/hnswctl's
// cobra/pflag bindings set afterward (main.go for the process-wide
// fields, build.go/query.go for the per-command IndexConfig fields).
func Load(version string) *Config {
	cfg := &Config{
		ServerName: "hnswctl",
		Version:    version,
		LogLevel:   "info",
		LogFormat:  "json",
		DataDir:    ".",
		Index: IndexConfig{
			MaxEdges:            16,
			DistributionRate:    1.0 / ln16,
			EfConstruction:      100,
			EfSearch:            5,
			CollectionSize:      65536,
			RandomSeed:          31337,
			AllowRemovals:       true,
			ZeroLayerGuaranteed: true,
			Heuristic:           "relative_neighborhood",
			Distance:            "cosine",
		},
	}

	if path := os.Getenv("HNSW_CONFIG_FILE"); path != "" {
		if fc, err := readConfigFile(path); err == nil {
			applyFileConfig(cfg, fc)
		}
	}

	cfg.ServerName = getEnvOrDefault("HNSW_SERVER_NAME", cfg.ServerName)
	cfg.LogLevel = getEnvOrDefault("HNSW_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("HNSW_LOG_FORMAT", cfg.LogFormat)
	cfg.DataDir = getEnvOrDefault("HNSW_DATA_DIR", cfg.DataDir)
	cfg.Index.MaxEdges = getEnvInt("HNSW_MAX_EDGES", cfg.Index.MaxEdges)
	cfg.Index.DistributionRate = getEnvFloat("HNSW_DISTRIBUTION_RATE", cfg.Index.DistributionRate)
	cfg.Index.EfConstruction = getEnvInt("HNSW_EF_CONSTRUCTION", cfg.Index.EfConstruction)
	cfg.Index.EfSearch = getEnvInt("HNSW_EF_SEARCH", cfg.Index.EfSearch)
	cfg.Index.CollectionSize = getEnvInt("HNSW_COLLECTION_SIZE", cfg.Index.CollectionSize)
	cfg.Index.RandomSeed = getEnvInt64("HNSW_RANDOM_SEED", cfg.Index.RandomSeed)
	cfg.Index.AllowRemovals = getEnvBool("HNSW_ALLOW_REMOVALS", cfg.Index.AllowRemovals)
	cfg.Index.ZeroLayerGuaranteed = getEnvBool("HNSW_ZERO_LAYER_GUARANTEED", cfg.Index.ZeroLayerGuaranteed)
	cfg.Index.Heuristic = getEnvOrDefault("HNSW_HEURISTIC", cfg.Index.Heuristic)
	cfg.Index.Distance = getEnvOrDefault("HNSW_DISTANCE", cfg.Index.Distance)

	return cfg
}

// readConfigFile reads and parses a YAML config file. A missing or
// malformed file is not fatal: Load falls back to defaults/env/flags,
// since a config file is an optional convenience layer, not a
// required input.
func readConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// applyFileConfig overlays any fields set in fc onto cfg.
func applyFileConfig(cfg *Config, fc *fileConfig) {
	if fc == nil {
		return
	}
	if fc.ServerName != nil {
		cfg.ServerName = *fc.ServerName
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		cfg.LogFormat = *fc.LogFormat
	}
	if fc.DataDir != nil {
		cfg.DataDir = *fc.DataDir
	}
	if fc.Index == nil {
		return
	}
	idx := fc.Index
	if idx.MaxEdges != nil {
		cfg.Index.MaxEdges = *idx.MaxEdges
	}
	if idx.DistributionRate != nil {
		cfg.Index.DistributionRate = *idx.DistributionRate
	}
	if idx.EfConstruction != nil {
		cfg.Index.EfConstruction = *idx.EfConstruction
	}
	if idx.EfSearch != nil {
		cfg.Index.EfSearch = *idx.EfSearch
	}
	if idx.CollectionSize != nil {
		cfg.Index.CollectionSize = *idx.CollectionSize
	}
	if idx.RandomSeed != nil {
		cfg.Index.RandomSeed = *idx.RandomSeed
	}
	if idx.AllowRemovals != nil {
		cfg.Index.AllowRemovals = *idx.AllowRemovals
	}
	if idx.ZeroLayerGuaranteed != nil {
		cfg.Index.ZeroLayerGuaranteed = *idx.ZeroLayerGuaranteed
	}
	if idx.Heuristic != nil {
		cfg.Index.Heuristic = *idx.Heuristic
	}
	if idx.Distance != nil {
		cfg.Index.Distance = *idx.Distance
	}
}

// ln16 is ln(16), matching spec.md §6's default mL = 1/ln(16).
const ln16 = 2.772588722239781

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result int64
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(value, "%f", &result); err != nil {
		return defaultValue
	}
	return result
}
