package hnsw

import (
	"fmt"
	"sync"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HashRecord is the opaque node payload stored in the graph: a stable id
// (the hash string), its metric, an externally-assigned page id, the
// layer it was assigned at insertion, and its per-layer neighbor sets.
//
// layer is single-assignment (set by GraphCore.Insert or by persist.Load
// restoring a snapshot). Neighbor sets are mutated by GraphCore.Insert
// (add + shrink + rollback), GraphCore.Delete (remove) and persist.Load
// (restoring edges).
type HashRecord struct {
	id     string
	metric DistanceMetric
	pageID int64

	mu       sync.RWMutex
	layer    int
	layerSet bool
	// neighbors[L] holds the set of neighbor ids -> record at layer L.
	neighbors map[int]map[string]*HashRecord
}

// NewHashRecord creates a record with its layer left unassigned; callers
// (GraphCore.Insert, or persist.Load restoring a snapshot) must call
// SetLayer before the record participates in graph operations that read
// Layer().
func NewHashRecord(id string, pageID int64, metric DistanceMetric) *HashRecord {
	return &HashRecord{
		id:        canonicalizeID(id),
		metric:    metric,
		pageID:    pageID,
		neighbors: make(map[int]map[string]*HashRecord),
	}
}

// canonicalizeID normalizes a hash string to NFC so that
// visually-identical hashes with different Unicode representations
// collide to the same id.
func canonicalizeID(id string) string {
	out, _, err := transform.String(norm.NFC, id)
	if err != nil {
		return id
	}
	return out
}

// ID returns the record's stable identifier (the hash string).
func (r *HashRecord) ID() string { return r.id }

// PageID returns the record's external page identifier.
func (r *HashRecord) PageID() int64 { return r.pageID }

// Metric returns the record's bound distance metric.
func (r *HashRecord) Metric() DistanceMetric { return r.metric }

// Layer returns the record's assigned layer. Valid only after SetLayer
// has been called.
func (r *HashRecord) Layer() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.layer
}

// SetLayer assigns the record's layer. Single-assignment: a second call
// with a different value fails with ErrLayerAlreadySet. A second call
// with the same value is a no-op success, so callers do not need to
// track whether they already called it.
func (r *HashRecord) SetLayer(layer int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.layerSet && r.layer != layer {
		return fmt.Errorf("record %q: set layer %d, already %d: %w", r.id, layer, r.layer, ErrLayerAlreadySet)
	}
	r.layer = layer
	r.layerSet = true
	return nil
}

// NeighborsAt returns the neighbors of the record at layer L, or an empty
// slice if L is absent. The returned slice is a fresh copy sorted by id —
// Go's map iteration order is randomized per-process, and graph
// traversal must be order-independent for a fixed seed and insert order
// to reproduce byte-identical dumps (Design Notes, "Randomness"). It
// remains valid until the next mutating call on this record.
func (r *HashRecord) NeighborsAt(layer int) []*HashRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.neighbors[layer]
	out := make([]*HashRecord, 0, len(set))
	for _, n := range set {
		out = append(out, n)
	}
	insertionSort(out, func(a, b *HashRecord) bool { return a.id < b.id })
	return out
}

// NeighborCountAt returns the number of neighbors at layer L.
func (r *HashRecord) NeighborCountAt(layer int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.neighbors[layer])
}

// AddNeighbor adds other as a neighbor of r at layer L. Idempotent: a
// no-op if other is already present. Fails with ErrLayerExceeded if L is
// above r's assigned layer — a programming error, since an insertion
// sweep never touches layers above the inserted node's draw.
func (r *HashRecord) AddNeighbor(layer int, other *HashRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if layer > r.layer {
		return fmt.Errorf("record %q: add neighbor at L%d exceeds assigned layer %d: %w", r.id, layer, r.layer, ErrLayerExceeded)
	}
	if other.id == r.id {
		return fmt.Errorf("record %q: cannot neighbor itself", r.id)
	}
	set := r.neighbors[layer]
	if set == nil {
		set = make(map[string]*HashRecord)
		r.neighbors[layer] = set
	}
	set[other.id] = other
	return nil
}

// RemoveNeighbor removes other from r's neighbor set at layer L.
// Idempotent: a no-op if absent.
func (r *HashRecord) RemoveNeighbor(layer int, other *HashRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.neighbors[layer]
	if set == nil {
		return
	}
	delete(set, other.id)
}

// SetNeighborsAt replaces the entire neighbor set at layer L — used by
// the shrink step after neighbor re-selection.
func (r *HashRecord) SetNeighborsAt(layer int, records []*HashRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]*HashRecord, len(records))
	for _, n := range records {
		if n.id == r.id {
			continue
		}
		set[n.id] = n
	}
	r.neighbors[layer] = set
}

// Score delegates to the bound metric to compute the distance/similarity
// between r and other. Returns ErrMetricMismatch if other uses a
// different metric.
func (r *HashRecord) Score(other *HashRecord) (float64, error) {
	if r.metric.Tag() != other.metric.Tag() {
		return 0, fmt.Errorf("record %q vs %q: %w", r.id, other.id, ErrMetricMismatch)
	}
	return r.metric.Score(r.id, other.id)
}
