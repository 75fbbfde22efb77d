// Package config loads IndexConfig from (in ascending priority) built-in
// defaults, a YAML file, a .env file, and process environment variables.
// No command-line flag overrides these values.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
)

// IndexConfig is the fully-resolved configuration for constructing a
// GraphCore and driving its persistence.
type IndexConfig struct {
	Graph       hnsw.GraphConfig
	Persistence PersistenceConfig
}

// PersistenceConfig controls where and how snapshots are written.
type PersistenceConfig struct {
	// Path is the snapshot file location. Preferred suffix is .apo.
	Path string

	// Compress enables transparent gzip wrapping on dump.
	Compress bool
}

// fileConfig is the YAML-file shape, every field optional so a partial
// override file only touches what it names.
type fileConfig struct {
	M                *int     `yaml:"m"`
	Ef               *int     `yaml:"ef"`
	Mmax             *int     `yaml:"mmax"`
	Mmax0            *int     `yaml:"mmax0"`
	Heuristic        *bool    `yaml:"heuristic"`
	ExtendCandidates *bool    `yaml:"extend_candidates"`
	KeepPrunedConns  *bool    `yaml:"keep_pruned_conns"`
	BeerFactor       *float32 `yaml:"beer_factor"`
	Metric           *string  `yaml:"metric"`
	Seed             *int64   `yaml:"seed"`
	SnapshotPath     *string  `yaml:"snapshot_path"`
	Compress         *bool    `yaml:"compress"`
}

// Defaults returns the built-in baseline before any overlay is applied.
func Defaults() IndexConfig {
	return IndexConfig{
		Graph: hnsw.GraphConfig{
			M:         16,
			Ef:        64,
			Mmax:      16,
			Mmax0:     32,
			Heuristic: true,
			MetricTag: hnsw.MetricTagTLSH,
			Seed:      0,
		},
		Persistence: PersistenceConfig{
			Path:     "index.apo",
			Compress: true,
		},
	}
}

// Load resolves IndexConfig by layering, in order: built-in defaults, the
// YAML file at yamlPath (if non-empty and present), a .env file in the
// working directory (if present), then process environment variables.
// Each layer only overrides fields it actually sets.
func Load(yamlPath string) (IndexConfig, error) {
	cfg := Defaults()

	if yamlPath != "" {
		if err := applyYAMLFile(&cfg, yamlPath); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: load .env: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyYAMLFile(cfg *IndexConfig, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	fc.applyTo(cfg)
	return nil
}

func (fc fileConfig) applyTo(cfg *IndexConfig) {
	if fc.M != nil {
		cfg.Graph.M = *fc.M
	}
	if fc.Ef != nil {
		cfg.Graph.Ef = *fc.Ef
	}
	if fc.Mmax != nil {
		cfg.Graph.Mmax = *fc.Mmax
	}
	if fc.Mmax0 != nil {
		cfg.Graph.Mmax0 = *fc.Mmax0
	}
	if fc.Heuristic != nil {
		cfg.Graph.Heuristic = *fc.Heuristic
	}
	if fc.ExtendCandidates != nil {
		cfg.Graph.ExtendCandidates = *fc.ExtendCandidates
	}
	if fc.KeepPrunedConns != nil {
		cfg.Graph.KeepPrunedConns = *fc.KeepPrunedConns
	}
	if fc.BeerFactor != nil {
		cfg.Graph.BeerFactor = *fc.BeerFactor
	}
	if fc.Metric != nil {
		cfg.Graph.MetricTag = parseMetricTag(*fc.Metric)
	}
	if fc.Seed != nil {
		cfg.Graph.Seed = *fc.Seed
	}
	if fc.SnapshotPath != nil {
		cfg.Persistence.Path = *fc.SnapshotPath
	}
	if fc.Compress != nil {
		cfg.Persistence.Compress = *fc.Compress
	}
}

func applyEnv(cfg *IndexConfig) {
	cfg.Graph.M = getEnvInt("APOTHEOSIS_M", cfg.Graph.M)
	cfg.Graph.Ef = getEnvInt("APOTHEOSIS_EF", cfg.Graph.Ef)
	cfg.Graph.Mmax = getEnvInt("APOTHEOSIS_MMAX", cfg.Graph.Mmax)
	cfg.Graph.Mmax0 = getEnvInt("APOTHEOSIS_MMAX0", cfg.Graph.Mmax0)
	cfg.Graph.Heuristic = getEnvBool("APOTHEOSIS_HEURISTIC", cfg.Graph.Heuristic)
	cfg.Graph.ExtendCandidates = getEnvBool("APOTHEOSIS_EXTEND_CANDIDATES", cfg.Graph.ExtendCandidates)
	cfg.Graph.KeepPrunedConns = getEnvBool("APOTHEOSIS_KEEP_PRUNED_CONNS", cfg.Graph.KeepPrunedConns)
	cfg.Graph.BeerFactor = getEnvFloat32("APOTHEOSIS_BEER_FACTOR", cfg.Graph.BeerFactor)
	cfg.Graph.Seed = getEnvInt64("APOTHEOSIS_SEED", cfg.Graph.Seed)
	if v := os.Getenv("APOTHEOSIS_METRIC"); v != "" {
		cfg.Graph.MetricTag = parseMetricTag(v)
	}
	cfg.Persistence.Path = getEnvOrDefault("APOTHEOSIS_SNAPSHOT_PATH", cfg.Persistence.Path)
	cfg.Persistence.Compress = getEnvBool("APOTHEOSIS_COMPRESS", cfg.Persistence.Compress)
}

func parseMetricTag(name string) hnsw.MetricTag {
	switch name {
	case "ssdeep":
		return hnsw.MetricTagSSDEEP
	case "tlsh":
		return hnsw.MetricTagTLSH
	default:
		return hnsw.MetricTagUnknown
	}
}

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

func getEnvFloat32(key string, defaultValue float32) float32 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result float32
	if _, err := fmt.Sscanf(value, "%f", &result); err != nil {
		return defaultValue
	}
	return result
}
