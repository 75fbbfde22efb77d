package persist

import "github.com/fsvxavier/apotheosis/internal/hnsw"

// RecordLoader resolves a page id back into a HashRecord during Load. It
// must populate id, page id, and metric; Load itself assigns the layer
// once it has read it from the snapshot.
type RecordLoader interface {
	Fetch(pageID int64, metric hnsw.DistanceMetric) (*hnsw.HashRecord, error)
}

// RecordLoaderFunc adapts a plain function to RecordLoader.
type RecordLoaderFunc func(pageID int64, metric hnsw.DistanceMetric) (*hnsw.HashRecord, error)

func (f RecordLoaderFunc) Fetch(pageID int64, metric hnsw.DistanceMetric) (*hnsw.HashRecord, error) {
	return f(pageID, metric)
}
