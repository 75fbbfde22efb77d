// Package hnsw implements a Hierarchical Navigable Small World graph index
// over fuzzy-hash fingerprints (TLSH, ssdeep). It supports approximate
// k-nearest-neighbor and threshold search with logarithmic-expected-time
// traversal, insertion with heuristic neighbor selection, and deletion
// with entry-point repair.
//
// GraphCore is not concurrency-safe: Insert and Delete mutate shared
// structure (entry point, per-layer node index, neighbor sets) and must
// be serialized by the caller. Search operations are read-only and safe
// to run concurrently with each other only if no writer is active.
package hnsw

import (
	"fmt"
	"math"
)

// GraphConfig carries the construction parameters of a GraphCore. Every
// field except Seed is persisted in a snapshot's cfg section; a loaded
// graph gets Seed's zero value.
type GraphConfig struct {
	M                int
	Ef               int
	Mmax             int
	Mmax0            int
	Heuristic        bool
	ExtendCandidates bool
	KeepPrunedConns  bool
	BeerFactor       float32
	MetricTag        MetricTag
	Seed             int64
}

// GraphCore is the layered proximity graph described by the insert/delete/search operations below.
type GraphCore struct {
	cfg    GraphConfig
	mL     float64
	metric DistanceMetric
	rng    *graphRNG

	entryPoint *HashRecord
	nodes      map[string]*HashRecord
	// byLayer groups records by their assigned (top) layer, in insertion
	// order, for deterministic serialization (Design Notes, "Randomness":
	// a fixed seed + fixed insert order must reproduce byte-identical
	// dumps).
	byLayer map[int][]*HashRecord
}

// NewGraphCore constructs an empty graph with the given configuration and
// metric.
func NewGraphCore(cfg GraphConfig, metric DistanceMetric) *GraphCore {
	if cfg.M < 1 {
		cfg.M = 1
	}
	return &GraphCore{
		cfg:     cfg,
		mL:      1.0 / math.Log(float64(cfg.M)+1e-12),
		metric:  metric,
		rng:     newGraphRNG(cfg.Seed),
		nodes:   make(map[string]*HashRecord),
		byLayer: make(map[int][]*HashRecord),
	}
}

// Config returns the graph's construction parameters, e.g. for
// serialization.
func (g *GraphCore) Config() GraphConfig { return g.cfg }

// Metric returns the graph's bound distance metric.
func (g *GraphCore) Metric() DistanceMetric { return g.metric }

// EntryPoint returns the current entry point, or nil if the graph is
// empty.
func (g *GraphCore) EntryPoint() *HashRecord { return g.entryPoint }

// Size returns the number of records in the graph.
func (g *GraphCore) Size() int { return len(g.nodes) }

// Get returns the record with the given id, if present.
func (g *GraphCore) Get(id string) (*HashRecord, bool) {
	r, ok := g.nodes[id]
	return r, ok
}

// LayersAscending returns the distinct assigned layers present in the
// graph, sorted ascending. Together with NodesAtLayer it lets the
// Serializer (and other callers) walk the graph deterministically.
func (g *GraphCore) LayersAscending() []int {
	layers := make([]int, 0, len(g.byLayer))
	for l := range g.byLayer {
		layers = append(layers, l)
	}
	for i := 1; i < len(layers); i++ {
		for j := i; j > 0 && layers[j-1] > layers[j]; j-- {
			layers[j-1], layers[j] = layers[j], layers[j-1]
		}
	}
	return layers
}

// NodesAtLayer returns the records whose assigned layer is exactly L, in
// insertion order.
func (g *GraphCore) NodesAtLayer(layer int) []*HashRecord {
	src := g.byLayer[layer]
	out := make([]*HashRecord, len(src))
	copy(out, src)
	return out
}

// AdoptRecord registers r into the graph's existence and layer indexes
// without running the insertion algorithm. Used only by a snapshot
// Loader rebuilding a graph whose edges are restored directly from
// serialized data rather than recomputed via neighbor selection.
func (g *GraphCore) AdoptRecord(r *HashRecord) {
	g.registerNode(r)
}

// SetEntryPoint forces the graph's entry point. Used only by a snapshot
// Loader restoring a dump's recorded entry point.
func (g *GraphCore) SetEntryPoint(r *HashRecord) {
	g.entryPoint = r
}

func cap0(cfg GraphConfig, layer int) int {
	if layer == 0 {
		return cfg.Mmax0
	}
	return cfg.Mmax
}

// drawLayer draws a layer: l = floor(-ln(U) * mL), U ~ (0,1].
func (g *GraphCore) drawLayer() int {
	u := g.rng.uniform01()
	return int(math.Floor(-math.Log(u) * g.mL))
}

// registerNode adds a fully-linked record to the existence index and its
// assigned-layer group. Called only after a successful insertion sweep
// (or directly when the graph was empty).
func (g *GraphCore) registerNode(r *HashRecord) {
	g.nodes[r.id] = r
	g.byLayer[r.layer] = append(g.byLayer[r.layer], r)
}

// Insert adds new to the graph. Returns true on
// success. Returns ErrNodeAlreadyExists if a record with the same id is
// already present (including the late-detection/rollback path in the
// insertion sweep), and ErrMetricMismatch if new's metric differs from
// the graph's.
func (g *GraphCore) Insert(newRec *HashRecord) (bool, error) {
	if newRec.metric.Tag() != g.metric.Tag() {
		return false, fmt.Errorf("insert %q: %w", newRec.id, ErrMetricMismatch)
	}

	layer := g.drawLayer()
	if err := newRec.SetLayer(layer); err != nil {
		return false, fmt.Errorf("insert %q: %w", newRec.id, err)
	}

	if g.entryPoint == nil {
		g.entryPoint = newRec
		g.registerNode(newRec)
		return true, nil
	}

	if _, exists := g.nodes[newRec.id]; exists {
		return false, fmt.Errorf("insert %q: %w", newRec.id, ErrNodeAlreadyExists)
	}

	epLayer := g.entryPoint.layer
	current := g.entryPoint

	// Descent: greedy-descend to layer+1 using width-1 search.
	for lc := epLayer; lc > layer; lc-- {
		found, err := g.searchLayer(newRec, []*HashRecord{current}, 1, lc)
		if err != nil {
			return false, err
		}
		if len(found) > 0 {
			current = found[0].rec
		}
	}

	// Insertion sweep from min(l, ep.layer) down to 0.
	frontier := []*HashRecord{current}
	startLayer := layer
	if epLayer < startLayer {
		startLayer = epLayer
	}

	for lc := startLayer; lc >= 0; lc-- {
		w, err := g.searchLayer(newRec, frontier, g.cfg.Ef, lc)
		if err != nil {
			return false, err
		}

		for _, c := range w {
			if c.rec.id == newRec.id {
				g.rollbackAbove(newRec, lc)
				return false, fmt.Errorf("insert %q: %w", newRec.id, ErrNodeAlreadyExists)
			}
		}

		candidates := make([]*HashRecord, len(w))
		for i, c := range w {
			candidates[i] = c.rec
		}
		neighbors, err := g.selectNeighbors(newRec, candidates, g.cfg.M, lc)
		if err != nil {
			return false, err
		}

		for _, n := range neighbors {
			if err := newRec.AddNeighbor(lc, n); err != nil {
				return false, err
			}
			if err := n.AddNeighbor(lc, newRec); err != nil {
				return false, err
			}
			if err := g.shrinkNeighbor(n, lc); err != nil {
				return false, err
			}
		}

		frontier = candidates
	}

	if layer > epLayer {
		g.entryPoint = newRec
	}
	g.registerNode(newRec)
	return true, nil
}

// rollbackAbove removes every edge added to newRec at layers strictly
// above stopLayer, implementing the duplicate-detected-mid-sweep rollback
//.
func (g *GraphCore) rollbackAbove(newRec *HashRecord, stopLayer int) {
	for l := newRec.layer; l > stopLayer; l-- {
		for _, n := range newRec.NeighborsAt(l) {
			n.RemoveNeighbor(l, newRec)
			newRec.RemoveNeighbor(l, n)
		}
	}
}

// shrinkNeighbor implements the post-insertion shrink step: if n exceeds
// its degree cap at layer L, its neighbor set is replaced with the
// cap(L)-best re-selection, and every dropped neighbor loses its edge
// back to n so edges stay bidirectional.
func (g *GraphCore) shrinkNeighbor(n *HashRecord, layer int) error {
	limit := cap0(g.cfg, layer)
	if n.NeighborCountAt(layer) <= limit {
		return nil
	}
	current := n.NeighborsAt(layer)
	selected, err := g.selectNeighbors(n, current, limit, layer)
	if err != nil {
		return err
	}
	n.SetNeighborsAt(layer, selected)
	kept := make(map[string]bool, len(selected))
	for _, s := range selected {
		kept[s.id] = true
	}
	for _, c := range current {
		if !kept[c.id] {
			c.RemoveNeighbor(layer, n)
		}
	}
	return nil
}

// Delete removes a record with the same id as victim from the graph,
// Deletion does not re-shrink or re-wire survivors —
// a documented accuracy trade-off carried from the reference design.
func (g *GraphCore) Delete(victim *HashRecord) (bool, error) {
	if g.entryPoint == nil {
		return false, ErrIndexEmpty
	}
	if victim.metric.Tag() != g.metric.Tag() {
		return false, fmt.Errorf("delete %q: %w", victim.id, ErrMetricMismatch)
	}

	found, ok := g.nodes[victim.id]
	if !ok {
		return false, fmt.Errorf("delete %q: %w", victim.id, ErrNodeNotFound)
	}

	if found == g.entryPoint {
		g.replaceEntryPoint(found)
	}

	for l := 0; l <= found.layer; l++ {
		for _, n := range found.NeighborsAt(l) {
			n.RemoveNeighbor(l, found)
		}
	}

	delete(g.nodes, found.id)
	g.removeFromLayerGroup(found)
	return true, nil
}

// replaceEntryPoint walk layers from the entry
// point's top layer downward, take the nearest neighbor at the first
// layer where the victim has any neighbor, and promote it. If none
// exists (singleton graph), the entry point becomes nil.
func (g *GraphCore) replaceEntryPoint(victim *HashRecord) {
	for l := victim.layer; l >= 0; l-- {
		neighbors := victim.NeighborsAt(l)
		if len(neighbors) == 0 {
			continue
		}
		nearest := nearestOf(g.metric, victim, neighbors)
		g.entryPoint = nearest
		return
	}
	g.entryPoint = nil
}

func (g *GraphCore) removeFromLayerGroup(r *HashRecord) {
	group := g.byLayer[r.layer]
	for i, n := range group {
		if n.id == r.id {
			g.byLayer[r.layer] = append(group[:i], group[i+1:]...)
			break
		}
	}
	if len(g.byLayer[r.layer]) == 0 {
		delete(g.byLayer, r.layer)
	}
}

// nearestOf returns the record in candidates nearest to base, under m's
// direction convention.
func nearestOf(m DistanceMetric, base *HashRecord, candidates []*HashRecord) *HashRecord {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestScore, _ := m.Score(base.id, best.id)
	for _, c := range candidates[1:] {
		s, err := m.Score(base.id, c.id)
		if err != nil {
			continue
		}
		if (m.IsSpatial() && s < bestScore) || (!m.IsSpatial() && s > bestScore) {
			best = c
			bestScore = s
		}
	}
	return best
}

// furthestOf returns the record in candidates furthest from base, under
// m's direction convention.
func furthestOf(m DistanceMetric, base *HashRecord, candidates []*HashRecord) *HashRecord {
	if len(candidates) == 0 {
		return nil
	}
	worst := candidates[0]
	worstScore, _ := m.Score(base.id, worst.id)
	for _, c := range candidates[1:] {
		s, err := m.Score(base.id, c.id)
		if err != nil {
			continue
		}
		if (m.IsSpatial() && s > worstScore) || (!m.IsSpatial() && s < worstScore) {
			worst = c
			worstScore = s
		}
	}
	return worst
}
