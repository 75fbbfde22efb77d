package hnsw

// selectNeighbors dispatches to the simple or heuristic selection
// algorithm per the graph's configuration.
func (g *GraphCore) selectNeighbors(base *HashRecord, candidates []*HashRecord, m int, layer int) ([]*HashRecord, error) {
	if !g.cfg.Heuristic {
		return g.selectNeighborsSimple(base, candidates, m)
	}
	return g.selectNeighborsHeuristic(base, candidates, m, layer)
}

// selectNeighborsSimple is Algorithm 3: sort candidates by closeness to
// base and return the M best.
func (g *GraphCore) selectNeighborsSimple(base *HashRecord, candidates []*HashRecord, m int) ([]*HashRecord, error) {
	sorted := make([]*HashRecord, len(candidates))
	copy(sorted, candidates)

	var sortErr error
	insertionSort(sorted, func(a, b *HashRecord) bool {
		c, err := closer(g.metric, a.id, b.id, base.id)
		if err != nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return nil, sortErr
	}

	if m > len(sorted) {
		m = len(sorted)
	}
	return sorted[:m], nil
}

// insertionSort stably sorts in place using less(a,b) to mean "a belongs
// before b". Used instead of sort.Slice so a closure error from the
// scoring function can be observed deterministically without a panic.
func insertionSort(s []*HashRecord, less func(a, b *HashRecord) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// selectNeighborsHeuristic is Algorithm 4: prefer diverse neighbors over
// pure nearest-first, optionally extending the candidate pool with
// existing neighbors-of-neighbors and retaining discarded candidates up
// to M when keep_pruned_conns is set. beer_factor, when > 0, randomly
// flips individual comparisons during selection.
func (g *GraphCore) selectNeighborsHeuristic(base *HashRecord, candidates []*HashRecord, m int, layer int) ([]*HashRecord, error) {
	working := make(map[string]*HashRecord, len(candidates))
	for _, c := range candidates {
		if c.id == base.id {
			continue
		}
		working[c.id] = c
	}

	if g.cfg.ExtendCandidates {
		for _, c := range candidates {
			for _, n := range c.NeighborsAt(layer) {
				if n.id == base.id {
					continue
				}
				working[n.id] = n
			}
		}
	}

	result := make(map[string]*HashRecord)
	discarded := make(map[string]*HashRecord)

	for len(working) > 0 && len(result) < m {
		nearestW := nearestOfMap(g.metric, base, working)
		delete(working, nearestW.id)

		if len(result) == 0 {
			result[nearestW.id] = nearestW
			continue
		}

		nearestR := nearestOfMap(g.metric, base, result)
		eCloser, err := closer(g.metric, nearestW.id, nearestR.id, base.id)
		if err != nil {
			return nil, err
		}
		if g.rng.flip(float64(g.cfg.BeerFactor)) {
			eCloser = !eCloser
		}

		if eCloser {
			result[nearestW.id] = nearestW
		} else {
			discarded[nearestW.id] = nearestW
		}
	}

	if g.cfg.KeepPrunedConns {
		for len(discarded) > 0 && len(result) < m {
			nearestD := nearestOfMap(g.metric, base, discarded)
			delete(discarded, nearestD.id)
			result[nearestD.id] = nearestD
		}
	}

	out := make([]*HashRecord, 0, len(result))
	for _, r := range result {
		out = append(out, r)
	}
	insertionSort(out, func(a, b *HashRecord) bool { return a.id < b.id })
	return out, nil
}

// nearestOfMap returns the record in set nearest to base, under m's
// direction convention. Go map iteration order is randomized, so ties on
// score are broken by the lexicographically smaller id — keeping the
// result independent of iteration order, which matters for the
// byte-identical dump reproducibility Design Notes requires under a
// fixed seed and insert order.
func nearestOfMap(m DistanceMetric, base *HashRecord, set map[string]*HashRecord) *HashRecord {
	var best *HashRecord
	var bestScore float64
	for _, c := range set {
		s, err := m.Score(base.id, c.id)
		if err != nil {
			continue
		}
		switch {
		case best == nil:
			best, bestScore = c, s
		case m.IsSpatial() && s < bestScore, !m.IsSpatial() && s > bestScore:
			best, bestScore = c, s
		case s == bestScore && c.id < best.id:
			best, bestScore = c, s
		}
	}
	return best
}
