package index

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
	"github.com/fsvxavier/apotheosis/internal/persist"
)

func tlshID(i int) string {
	return fmt.Sprintf("T1%08X", i*2654435761)
}

func newTestFacade(t *testing.T, n int) (*IndexFacade, *trieIndex, map[int64]string) {
	t.Helper()
	metric := hnsw.TLSHMetric{}
	cfg := hnsw.GraphConfig{M: 4, Ef: 16, Mmax: 4, Mmax0: 8, MetricTag: hnsw.MetricTagTLSH, Seed: 3}
	g := hnsw.NewGraphCore(cfg, metric)
	prefix := newTrieIndex()
	registry := make(map[int64]string)
	loader := persist.RecordLoaderFunc(func(pageID int64, m hnsw.DistanceMetric) (*hnsw.HashRecord, error) {
		id, ok := registry[pageID]
		if !ok {
			return nil, fmt.Errorf("unknown page id %d", pageID)
		}
		return hnsw.NewHashRecord(id, pageID, m), nil
	})

	facade := NewIndexFacade(g, prefix, loader)
	for i := 0; i < n; i++ {
		id := tlshID(i)
		registry[int64(i)] = id
		ok, err := facade.Insert(hnsw.NewHashRecord(id, int64(i), metric))
		require.NoError(t, err)
		require.True(t, ok)
	}
	return facade, prefix, registry
}

func TestFacadeInsertIndexesPrefix(t *testing.T) {
	facade, prefix, _ := newTestFacade(t, 15)
	assert.Equal(t, 15, facade.Graph().Size())
	assert.Equal(t, 15, prefix.count())

	id := tlshID(3)
	rec, ok := prefix.lookup(id)
	require.True(t, ok)
	assert.Equal(t, id, rec.ID())
}

func TestFacadeDeleteRemovesFromPrefix(t *testing.T) {
	facade, prefix, _ := newTestFacade(t, 10)
	rec, ok := facade.Graph().Get(tlshID(2))
	require.True(t, ok)

	ok, err := facade.Delete(rec)
	require.NoError(t, err)
	assert.True(t, ok)

	_, found := prefix.lookup(tlshID(2))
	assert.False(t, found)
	assert.Equal(t, 9, prefix.count())
}

func TestFacadeInsertDuplicateFails(t *testing.T) {
	facade, _, _ := newTestFacade(t, 5)
	dup := hnsw.NewHashRecord(tlshID(1), 999, hnsw.TLSHMetric{})
	ok, err := facade.Insert(dup)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, hnsw.ErrNodeAlreadyExists)
}

func TestFacadeDumpLoadRebuildsPrefixIndex(t *testing.T) {
	facade, _, registry := newTestFacade(t, 25)
	path := filepath.Join(t.TempDir(), "facade.apo")
	require.NoError(t, facade.Dump(path, false))

	loader := persist.RecordLoaderFunc(func(pageID int64, m hnsw.DistanceMetric) (*hnsw.HashRecord, error) {
		id, ok := registry[pageID]
		if !ok {
			return nil, fmt.Errorf("unknown page id %d", pageID)
		}
		return hnsw.NewHashRecord(id, pageID, m), nil
	})

	loadedPrefix := newTrieIndex()
	loaded, err := LoadIndexFacade(path, hnsw.TLSHMetric{}, loader, loadedPrefix)
	require.NoError(t, err)
	assert.Equal(t, facade.Graph().Size(), loaded.Graph().Size())
	assert.Equal(t, loaded.Graph().Size(), loadedPrefix.count())

	_, found := loadedPrefix.lookup(tlshID(4))
	assert.True(t, found)
}

func TestFacadeKNNAndThresholdSearchDelegateToGraph(t *testing.T) {
	facade, _, _ := newTestFacade(t, 30)
	query := hnsw.NewHashRecord(tlshID(7), 0, hnsw.TLSHMetric{})

	knn, err := facade.KNNSearch(query, 4, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, knn)

	thresh, err := facade.ThresholdSearch(query, 60, 2)
	require.NoError(t, err)
	for _, grp := range thresh {
		assert.LessOrEqual(t, grp.Score, 60.0)
	}
}
