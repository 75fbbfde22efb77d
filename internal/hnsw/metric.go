package hnsw

import (
	"fmt"
	"strings"
)

// MetricTag is the closed enum persisted in the binary snapshot's cfg
// section. Values are stable on disk; never renumber.
type MetricTag uint8

const (
	MetricTagUnknown MetricTag = 0
	MetricTagTLSH    MetricTag = 1
	MetricTagSSDEEP  MetricTag = 2
)

func (t MetricTag) String() string {
	switch t {
	case MetricTagTLSH:
		return "tlsh"
	case MetricTagSSDEEP:
		return "ssdeep"
	default:
		return "unknown"
	}
}

// MetricForTag resolves a persisted MetricTag to its DistanceMetric
// implementation, for callers (config loading, the CLI driver) that only
// have the tag on hand.
func MetricForTag(tag MetricTag) (DistanceMetric, error) {
	switch tag {
	case MetricTagTLSH:
		return TLSHMetric{}, nil
	case MetricTagSSDEEP:
		return SSDEEPMetric{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMetricTag, tag)
	}
}

// DistanceMetric is the polymorphic similarity/distance surface GraphCore
// operates through. Implementations must be value-like and allocation-free
// per call. Score must be symmetric; for spatial metrics Score(x,x) == 0,
// for similarity metrics Score(x,x) equals the metric's maximum.
type DistanceMetric interface {
	// Name identifies the metric for logging and error messages.
	Name() string

	// Tag is the closed-enum identifier persisted in snapshots.
	Tag() MetricTag

	// IsSpatial reports whether lower scores mean "closer" (true) or
	// higher scores mean "closer" (false, similarity metric).
	IsSpatial() bool

	// MaxAlphabetLen is the size of the alphabet used to draw synthetic
	// hash characters for randomized-hash generation in tests.
	MaxAlphabetLen() int

	// Score computes the (symmetric) distance or similarity between two
	// hash strings belonging to this metric.
	Score(a, b string) (float64, error)
}

// closer reports whether a is closer to query than b is, under m's
// direction convention.
func closer(m DistanceMetric, a, b string, query string) (bool, error) {
	sa, err := m.Score(a, query)
	if err != nil {
		return false, err
	}
	sb, err := m.Score(b, query)
	if err != nil {
		return false, err
	}
	if m.IsSpatial() {
		return sa < sb, nil
	}
	return sa > sb, nil
}

// signedScore returns a score where "smaller is always closer", matching
// Design Notes' priority-queue direction-flip trick: sign = -1 for
// similarity metrics, +1 for spatial metrics.
func signedScore(m DistanceMetric, query, other string) (float64, error) {
	s, err := m.Score(query, other)
	if err != nil {
		return 0, err
	}
	if m.IsSpatial() {
		return s, nil
	}
	return -s, nil
}

// TLSHMetric is a spatial (lower = closer) stand-in for the TLSH diff
// algorithm. It preserves TLSH's shape (hex-digest body, diff grows with
// dissimilarity, diff(x,x) == 0) without claiming to reproduce TLSH's
// internals bit-for-bit.
type TLSHMetric struct{}

func (TLSHMetric) Name() string         { return "tlsh" }
func (TLSHMetric) Tag() MetricTag       { return MetricTagTLSH }
func (TLSHMetric) IsSpatial() bool      { return true }
func (TLSHMetric) MaxAlphabetLen() int  { return 16 } // hex digits

// Score returns an approximate TLSH diff: the Hamming distance, in hex
// nibbles, between the two hashes' bodies (the part after the "T1"
// version prefix), scaled to approximate TLSH's typical diff range.
// Hashes of differing length are maximally distant.
func (m TLSHMetric) Score(a, b string) (float64, error) {
	ba, err := tlshBody(a)
	if err != nil {
		return 0, fmt.Errorf("tlsh: %w", err)
	}
	bb, err := tlshBody(b)
	if err != nil {
		return 0, fmt.Errorf("tlsh: %w", err)
	}
	if len(ba) != len(bb) {
		return 1000, nil // maximal diff, mirrors TLSH's behavior on length mismatch
	}
	var diff int
	for i := range ba {
		if ba[i] != bb[i] {
			diff++
		}
	}
	return float64(diff) * 4, nil
}

func tlshBody(hash string) (string, error) {
	h := strings.ToUpper(hash)
	if strings.HasPrefix(h, "T1") {
		h = h[2:]
	}
	if len(h) == 0 {
		return "", fmt.Errorf("empty TLSH hash")
	}
	return h, nil
}

// SSDEEPMetric is a similarity (higher = closer) stand-in for ssdeep's
// context-triggered-piecewise-hash similarity score. It preserves
// ssdeep's shape (percentage score 0..100, similarity(x,x) == 100) via
// a block-level trigram overlap measure rather than the real rolling-hash
// algorithm.
type SSDEEPMetric struct{}

func (SSDEEPMetric) Name() string        { return "ssdeep" }
func (SSDEEPMetric) Tag() MetricTag      { return MetricTagSSDEEP }
func (SSDEEPMetric) IsSpatial() bool     { return false }
func (SSDEEPMetric) MaxAlphabetLen() int { return 64 } // ssdeep base64 block alphabet

// Score returns an approximate ssdeep similarity percentage in [0, 100].
func (m SSDEEPMetric) Score(a, b string) (float64, error) {
	if a == "" || b == "" {
		return 0, fmt.Errorf("ssdeep: empty hash")
	}
	blockA, sigA := ssdeepParts(a)
	blockB, sigB := ssdeepParts(b)
	if blockA != blockB {
		return 0, nil // only equal block sizes are compared; any other pair scores 0
	}
	if sigA == sigB {
		return 100, nil
	}
	overlap := trigramOverlap(sigA, sigB)
	return overlap, nil
}

func ssdeepParts(hash string) (string, string) {
	idx := strings.IndexByte(hash, ':')
	if idx < 0 {
		return "", hash
	}
	return hash[:idx], hash[idx+1:]
}

// trigramOverlap returns a 0..100 similarity score from the fraction of
// 3-grams shared between the two signature strings.
func trigramOverlap(a, b string) float64 {
	grams := func(s string) map[string]struct{} {
		set := make(map[string]struct{})
		for i := 0; i+3 <= len(s); i++ {
			set[s[i:i+3]] = struct{}{}
		}
		return set
	}
	ga, gb := grams(a), grams(b)
	if len(ga) == 0 || len(gb) == 0 {
		if a == b {
			return 100
		}
		return 0
	}
	var shared int
	for g := range ga {
		if _, ok := gb[g]; ok {
			shared++
		}
	}
	union := len(ga) + len(gb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union) * 100
}
