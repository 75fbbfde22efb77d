package hnsw

import "container/heap"

// searchCandidate pairs a record with its signed distance to the query
// (smaller key == closer, regardless of metric direction) and a
// discovery sequence number used to break ties deterministically.
type searchCandidate struct {
	rec *HashRecord
	key float64
	seq uint64
}

// minCandidateHeap is a min-heap over searchCandidate.key, tie-broken by
// seq ascending (earliest-discovered sorts first).
type minCandidateHeap []*searchCandidate

func (h minCandidateHeap) Len() int { return len(h) }
func (h minCandidateHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].seq < h[j].seq
}
func (h minCandidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minCandidateHeap) Push(x any)   { *h = append(*h, x.(*searchCandidate)) }
func (h *minCandidateHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// furthestIndex returns the index in w of the element with the largest
// key. Ties are broken by picking the largest seq (most-recently
// discovered), so that among equally-distant candidates the one
// encountered first is the one kept.
func furthestIndex(w []*searchCandidate) int {
	best := 0
	for i := 1; i < len(w); i++ {
		if w[i].key > w[best].key || (w[i].key == w[best].key && w[i].seq > w[best].seq) {
			best = i
		}
	}
	return best
}

// searchLayer performs a k-NN search at a single layer, returning up to
// ef records closest to query found within the connected component
// reachable from eps at layer L.
func (g *GraphCore) searchLayer(query *HashRecord, eps []*HashRecord, ef int, layer int) ([]*searchCandidate, error) {
	visited := make(map[string]bool, len(eps))
	var seq uint64

	candidates := make(minCandidateHeap, 0, ef)
	w := make([]*searchCandidate, 0, ef)

	for _, ep := range eps {
		if visited[ep.id] {
			continue
		}
		visited[ep.id] = true
		key, err := signedScore(g.metric, query.id, ep.id)
		if err != nil {
			return nil, err
		}
		c := &searchCandidate{rec: ep, key: key, seq: seq}
		seq++
		candidates = append(candidates, c)
		w = append(w, c)
	}
	heap.Init(&candidates)

	for candidates.Len() > 0 {
		fi := furthestIndex(w)
		var furthestKey float64
		if len(w) > 0 {
			furthestKey = w[fi].key
		}

		current := heap.Pop(&candidates).(*searchCandidate)
		if len(w) >= ef && current.key > furthestKey {
			break
		}

		neighbors := current.rec.NeighborsAt(layer)
		for _, n := range neighbors {
			if visited[n.id] {
				continue
			}
			visited[n.id] = true

			key, err := signedScore(g.metric, query.id, n.id)
			if err != nil {
				return nil, err
			}

			fi = furthestIndex(w)
			var curFurthest float64
			if len(w) > 0 {
				curFurthest = w[fi].key
			}

			if len(w) < ef || key < curFurthest {
				nc := &searchCandidate{rec: n, key: key, seq: seq}
				seq++
				heap.Push(&candidates, nc)
				w = append(w, nc)
				if len(w) > ef {
					evict := furthestIndex(w)
					w = append(w[:evict], w[evict+1:]...)
				}
			}
		}
	}

	return w, nil
}
