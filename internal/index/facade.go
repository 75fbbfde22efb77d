// Package index composes the HNSW graph with its two external
// collaborators into the surface a caller actually drives: insert,
// delete, the two search operations, and snapshot dump/load.
package index

import (
	"context"
	"time"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
	"github.com/fsvxavier/apotheosis/internal/obslog"
	"github.com/fsvxavier/apotheosis/internal/persist"
)

// PrefixIndex is the auxiliary exact-match lookup structure kept
// alongside the graph. Its internals are out of scope here; IndexFacade
// only needs to keep it synchronized with the graph's membership and,
// after a load, rebuild it by iterating every record once.
type PrefixIndex interface {
	IndexRecord(r *hnsw.HashRecord)
	RemoveRecord(r *hnsw.HashRecord)
}

// IndexFacade is a thin wrapper composing GraphCore with the external
// prefix index and record loader.
type IndexFacade struct {
	graph  *hnsw.GraphCore
	prefix PrefixIndex
	loader persist.RecordLoader

	// name identifies this index in log attributes and the metrics
	// dashboard. Empty by default; set with SetName.
	name string
	// metrics, if set, records the duration of every operation below
	// under its operation name.
	metrics *obslog.PerformanceMetrics
}

// NewIndexFacade wraps an existing graph. prefix may be nil if the
// caller has no exact-match index to maintain.
func NewIndexFacade(graph *hnsw.GraphCore, prefix PrefixIndex, loader persist.RecordLoader) *IndexFacade {
	return &IndexFacade{graph: graph, prefix: prefix, loader: loader}
}

// Graph exposes the underlying GraphCore, e.g. for inspection in tests.
func (f *IndexFacade) Graph() *hnsw.GraphCore { return f.graph }

// SetName attaches an identifier used in log lines and metric records.
func (f *IndexFacade) SetName(name string) { f.name = name }

// SetMetrics attaches a timing dashboard; every operation below records
// its duration into it once set.
func (f *IndexFacade) SetMetrics(m *obslog.PerformanceMetrics) { f.metrics = m }

// Metrics returns the attached timing dashboard, or nil if none was set.
func (f *IndexFacade) Metrics() *obslog.PerformanceMetrics { return f.metrics }

func (f *IndexFacade) opContext(op string) context.Context {
	ctx := context.WithValue(context.Background(), obslog.OperationKey, op)
	if f.name != "" {
		ctx = context.WithValue(ctx, obslog.IndexKey, f.name)
	}
	return ctx
}

func (f *IndexFacade) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if f.metrics != nil {
		f.metrics.RecordOperation(op, elapsed)
	}
	ctx := f.opContext(op)
	if err != nil {
		obslog.ErrorContext(ctx, "operation failed", "elapsed", elapsed, "error", err)
	} else {
		obslog.DebugContext(ctx, "operation completed", "elapsed", elapsed)
	}
	return err
}

// Insert adds record to the graph and, on success, to the prefix index.
func (f *IndexFacade) Insert(record *hnsw.HashRecord) (bool, error) {
	var ok bool
	err := f.timed("insert", func() error {
		var insertErr error
		ok, insertErr = f.graph.Insert(record)
		if insertErr != nil {
			return insertErr
		}
		if f.prefix != nil {
			f.prefix.IndexRecord(record)
		}
		return nil
	})
	return ok, err
}

// Delete removes record from the graph and, on success, from the prefix
// index.
func (f *IndexFacade) Delete(record *hnsw.HashRecord) (bool, error) {
	var ok bool
	err := f.timed("delete", func() error {
		var deleteErr error
		ok, deleteErr = f.graph.Delete(record)
		if deleteErr != nil {
			return deleteErr
		}
		if f.prefix != nil {
			f.prefix.RemoveRecord(record)
		}
		return nil
	})
	return ok, err
}

// KNNSearch finds the k records closest to query. ef == 0 uses the
// graph's configured ef.
func (f *IndexFacade) KNNSearch(query *hnsw.HashRecord, k, ef int) ([]hnsw.ScoreGroup, error) {
	var groups []hnsw.ScoreGroup
	err := f.timed("knn_search", func() error {
		var searchErr error
		groups, searchErr = f.graph.KNNSearch(query, k, ef)
		return searchErr
	})
	return groups, err
}

// ThresholdSearch finds every record within threshold of query, up to
// nHops breadth-first hops at layer 0.
func (f *IndexFacade) ThresholdSearch(query *hnsw.HashRecord, threshold float64, nHops int) ([]hnsw.ScoreGroup, error) {
	var groups []hnsw.ScoreGroup
	err := f.timed("threshold_search", func() error {
		var searchErr error
		groups, searchErr = f.graph.ThresholdSearch(query, threshold, nHops)
		return searchErr
	})
	return groups, err
}

// Dump writes the current graph to path.
func (f *IndexFacade) Dump(path string, compress bool) error {
	return f.timed("dump", func() error {
		return persist.Dump(path, f.graph, compress)
	})
}

// LoadIndexFacade reads a snapshot from path, resolving page ids through
// loader, and rebuilds prefix (if non-nil) by iterating every loaded
// record once.
func LoadIndexFacade(path string, metric hnsw.DistanceMetric, loader persist.RecordLoader, prefix PrefixIndex) (*IndexFacade, error) {
	start := time.Now()
	g, err := persist.Load(path, metric, loader)
	ctx := context.WithValue(context.Background(), obslog.OperationKey, "load")
	if err != nil {
		obslog.ErrorContext(ctx, "load failed", "path", path, "elapsed", time.Since(start), "error", err)
		return nil, err
	}
	f := &IndexFacade{graph: g, prefix: prefix, loader: loader}
	f.rebuildPrefixIndex()
	obslog.DebugContext(ctx, "load completed", "path", path, "elapsed", time.Since(start), "size", g.Size())
	return f, nil
}

func (f *IndexFacade) rebuildPrefixIndex() {
	if f.prefix == nil {
		return
	}
	for _, l := range f.graph.LayersAscending() {
		for _, r := range f.graph.NodesAtLayer(l) {
			f.prefix.IndexRecord(r)
		}
	}
}
