package hnsw

import "errors"

// Sentinel errors returned by GraphCore and HashRecord operations.
// Callers should compare with errors.Is, since internal call sites wrap
// these with additional context via fmt.Errorf("...: %w", err).
var (
	// ErrNodeAlreadyExists is returned by Insert when a record with the
	// same id is already present in the graph.
	ErrNodeAlreadyExists = errors.New("hnsw: node already exists")

	// ErrNodeNotFound is returned by Delete when the target id is absent.
	ErrNodeNotFound = errors.New("hnsw: node not found")

	// ErrIndexEmpty is returned by Delete and the search operations when
	// the graph holds no records.
	ErrIndexEmpty = errors.New("hnsw: index is empty")

	// ErrMetricMismatch is returned when a record's metric differs from
	// the metric bound to the graph it is being inserted into or queried
	// against.
	ErrMetricMismatch = errors.New("hnsw: metric mismatch")

	// ErrLayerExceeded is returned by AddNeighbor when the requested layer
	// is above a record's assigned layer.
	ErrLayerExceeded = errors.New("hnsw: layer exceeds record's assigned layer")

	// ErrLayerAlreadySet is returned by SetLayer on a second call with a
	// different value than the first.
	ErrLayerAlreadySet = errors.New("hnsw: layer already assigned")

	// ErrUnknownMetricTag is returned by MetricForTag when given a tag
	// outside the closed MetricTag enum.
	ErrUnknownMetricTag = errors.New("hnsw: unknown metric tag")
)
