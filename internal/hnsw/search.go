package hnsw

import "fmt"

// ScoreGroup is one entry of the ordered score -> records mapping
// knn_search and threshold_search return. Go has no native ordered map;
// a slice of (score, records) pairs preserves the required
// closest-to-farthest order explicitly.
type ScoreGroup struct {
	Score   float64
	Records []*HashRecord
}

// groupByScore buckets records by their exact score relative to query,
// ordered from closest to farthest. Within each bucket, records keep
// their input order.
func groupByScore(metric DistanceMetric, query *HashRecord, records []*HashRecord) ([]ScoreGroup, error) {
	order := make([]*HashRecord, len(records))
	copy(order, records)
	insertionSort(order, func(a, b *HashRecord) bool {
		c, _ := closer(metric, a.id, b.id, query.id)
		return c
	})

	var groups []ScoreGroup
	index := make(map[float64]int)
	for _, r := range order {
		s, err := metric.Score(query.id, r.id)
		if err != nil {
			return nil, err
		}
		if idx, ok := index[s]; ok {
			groups[idx].Records = append(groups[idx].Records, r)
			continue
		}
		index[s] = len(groups)
		groups = append(groups, ScoreGroup{Score: s, Records: []*HashRecord{r}})
	}
	return groups, nil
}

// KNNSearch descends greedily to layer 1, searches layer 0 with breadth
// ef, then returns the k closest records to query grouped by score,
// closest first. ef == 0 means "use the graph's configured ef".
func (g *GraphCore) KNNSearch(query *HashRecord, k int, ef int) ([]ScoreGroup, error) {
	if g.entryPoint == nil {
		return nil, ErrIndexEmpty
	}
	if query.metric.Tag() != g.metric.Tag() {
		return nil, fmt.Errorf("knn_search %q: %w", query.id, ErrMetricMismatch)
	}
	if ef == 0 {
		ef = g.cfg.Ef
	}

	current := g.descendToLayer(query, 1)

	w, err := g.searchLayer(query, []*HashRecord{current}, ef, 0)
	if err != nil {
		return nil, err
	}
	candidates := candidateRecords(w)

	selected, err := g.selectNeighborsSimple(query, candidates, k)
	if err != nil {
		return nil, err
	}
	return groupByScore(g.metric, query, selected)
}

// ThresholdSearch starts from the knn frontier, then expands
// breadth-first at layer 0 up to n_hops hops,
// keeping any record whose score relative to query satisfies threshold
// (<= threshold for spatial metrics, >= threshold for similarity
// metrics). Returns the surviving records grouped by score.
func (g *GraphCore) ThresholdSearch(query *HashRecord, threshold float64, nHops int) ([]ScoreGroup, error) {
	if g.entryPoint == nil {
		return nil, ErrIndexEmpty
	}
	if query.metric.Tag() != g.metric.Tag() {
		return nil, fmt.Errorf("threshold_search %q: %w", query.id, ErrMetricMismatch)
	}

	current := g.descendToLayer(query, 1)
	ef := g.cfg.Ef
	w, err := g.searchLayer(query, []*HashRecord{current}, ef, 0)
	if err != nil {
		return nil, err
	}

	satisfies := func(r *HashRecord) (bool, error) {
		s, err := g.metric.Score(query.id, r.id)
		if err != nil {
			return false, err
		}
		if g.metric.IsSpatial() {
			return s <= threshold, nil
		}
		return s >= threshold, nil
	}

	visited := make(map[string]bool)
	var frontier []*HashRecord
	var survivors []*HashRecord

	for _, c := range w {
		if visited[c.rec.id] {
			continue
		}
		visited[c.rec.id] = true
		frontier = append(frontier, c.rec)
		ok, err := satisfies(c.rec)
		if err != nil {
			return nil, err
		}
		if ok {
			survivors = append(survivors, c.rec)
		}
	}

	for hop := 0; hop < nHops; hop++ {
		var next []*HashRecord
		for _, r := range frontier {
			for _, n := range r.NeighborsAt(0) {
				if visited[n.id] {
					continue
				}
				visited[n.id] = true
				next = append(next, n)
				ok, err := satisfies(n)
				if err != nil {
					return nil, err
				}
				if ok {
					survivors = append(survivors, n)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	return groupByScore(g.metric, query, survivors)
}

// descendToLayer greedily walks from the entry point down to (but not
// below) targetLayer using width-1 search at each layer.
func (g *GraphCore) descendToLayer(query *HashRecord, targetLayer int) *HashRecord {
	current := g.entryPoint
	for lc := g.entryPoint.layer; lc >= targetLayer; lc-- {
		found, err := g.searchLayer(query, []*HashRecord{current}, 1, lc)
		if err != nil || len(found) == 0 {
			continue
		}
		current = found[0].rec
	}
	return current
}

func candidateRecords(w []*searchCandidate) []*HashRecord {
	out := make([]*HashRecord, len(w))
	for i, c := range w {
		out[i] = c.rec
	}
	return out
}
