package hnsw

import "math/rand"

// graphRNG is the seedable pseudo-random source used for the layer draw
// and the beer_factor perturbation. A fixed
// seed plus a fixed insert order must reproduce byte-identical dumps, so
// this wraps a private *rand.Rand rather than the global source.
type graphRNG struct {
	r *rand.Rand
}

func newGraphRNG(seed int64) *graphRNG {
	return &graphRNG{r: rand.New(rand.NewSource(seed))}
}

// uniform01 draws U from (0,1], used by the layer-assignment formula
// l = floor(-ln(U) * mL).
func (g *graphRNG) uniform01() float64 {
	// rand.Float64 returns [0,1); flip to (0,1] so ln(U) is always finite.
	return 1 - g.r.Float64()
}

// flip returns true with probability p, used to perturb heuristic
// neighbor comparisons when beer_factor > 0.
func (g *graphRNG) flip(p float64) bool {
	if p <= 0 {
		return false
	}
	return g.r.Float64() < p
}
