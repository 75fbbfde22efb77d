package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
	"github.com/fsvxavier/apotheosis/internal/index"
	"github.com/fsvxavier/apotheosis/internal/obslog"
)

// parseStatsWindow turns the --window flag into a time.Duration; "all"
// (or empty) means the dashboard's zero value, covering every retained
// sample.
func parseStatsWindow(window string) (time.Duration, error) {
	switch window {
	case "", "all":
		return 0, nil
	case "1h":
		return time.Hour, nil
	case "24h":
		return 24 * time.Hour, nil
	default:
		d, err := time.ParseDuration(window)
		if err != nil {
			return 0, fmt.Errorf("apotheosis: --window %q: %w", window, err)
		}
		return d, nil
	}
}

// openFacade loads the snapshot at cfg.Persistence.Path if it exists, or
// starts a fresh graph from cfg.Graph otherwise. The returned registry
// must be saved by the caller after any mutation; the facade's attached
// metrics (f.Metrics()) should likewise be saved after any mutation.
func openFacade() (*index.IndexFacade, *registry, error) {
	metric, err := hnsw.MetricForTag(cfg.Graph.MetricTag)
	if err != nil {
		return nil, nil, err
	}

	reg, err := loadRegistry(cfg.Persistence.Path)
	if err != nil {
		return nil, nil, err
	}
	metrics := obslog.NewPerformanceMetrics(filepath.Dir(cfg.Persistence.Path))

	if _, statErr := os.Stat(cfg.Persistence.Path); statErr == nil {
		f, err := index.LoadIndexFacade(cfg.Persistence.Path, metric, reg.loader(), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("apotheosis: load %s: %w", cfg.Persistence.Path, err)
		}
		f.SetName(cfg.Persistence.Path)
		f.SetMetrics(metrics)
		return f, reg, nil
	}

	graph := hnsw.NewGraphCore(cfg.Graph, metric)
	f := index.NewIndexFacade(graph, nil, reg.loader())
	f.SetName(cfg.Persistence.Path)
	f.SetMetrics(metrics)
	return f, reg, nil
}
