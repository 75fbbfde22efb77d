package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
)

func tlshID(i int) string {
	return fmt.Sprintf("T1%08X", i*2654435761)
}

// memoryRegistry is a tiny in-memory stand-in for whatever record store
// backs a real RecordLoader: it remembers id/pageID/metric by
// pageID so Load can resolve page ids without touching disk.
type memoryRegistry struct {
	byPageID map[int64]string
	metric   hnsw.DistanceMetric
}

func newMemoryRegistry(metric hnsw.DistanceMetric) *memoryRegistry {
	return &memoryRegistry{byPageID: make(map[int64]string), metric: metric}
}

func (m *memoryRegistry) put(pageID int64, id string) { m.byPageID[pageID] = id }

func (m *memoryRegistry) loader() RecordLoader {
	return RecordLoaderFunc(func(pageID int64, metric hnsw.DistanceMetric) (*hnsw.HashRecord, error) {
		id, ok := m.byPageID[pageID]
		if !ok {
			return nil, fmt.Errorf("no such page id %d", pageID)
		}
		return hnsw.NewHashRecord(id, pageID, metric), nil
	})
}

func buildGraphWithRegistry(t *testing.T, n int, seed int64) (*hnsw.GraphCore, *memoryRegistry) {
	t.Helper()
	metric := hnsw.TLSHMetric{}
	cfg := hnsw.GraphConfig{M: 4, Ef: 16, Mmax: 4, Mmax0: 8, MetricTag: hnsw.MetricTagTLSH, Seed: seed}
	g := hnsw.NewGraphCore(cfg, metric)
	reg := newMemoryRegistry(metric)

	for i := 0; i < n; i++ {
		id := tlshID(i)
		r := hnsw.NewHashRecord(id, int64(i), metric)
		ok, err := g.Insert(r)
		require.NoError(t, err)
		require.True(t, ok)
		reg.put(int64(i), id)
	}
	return g, reg
}

func TestDumpLoadEmptyGraphRoundTrips(t *testing.T) {
	metric := hnsw.TLSHMetric{}
	cfg := hnsw.GraphConfig{M: 4, Ef: 4, Mmax: 8, Mmax0: 16, MetricTag: hnsw.MetricTagTLSH}
	g := hnsw.NewGraphCore(cfg, metric)

	path := filepath.Join(t.TempDir(), "empty.apo")
	require.NoError(t, Dump(path, g, false))

	reg := newMemoryRegistry(metric)
	loaded, err := Load(path, metric, reg.loader())
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Size())
	assert.Nil(t, loaded.EntryPoint())

	_, err = loaded.KNNSearch(hnsw.NewHashRecord(tlshID(0), 0, metric), 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, hnsw.ErrIndexEmpty)
}

func TestDumpLoadPreservesKNNResults(t *testing.T) {
	g, reg := buildGraphWithRegistry(t, 40, 5)

	path := filepath.Join(t.TempDir(), "graph.apo")
	require.NoError(t, Dump(path, g, false))

	loaded, err := Load(path, hnsw.TLSHMetric{}, reg.loader())
	require.NoError(t, err)
	require.Equal(t, g.Size(), loaded.Size())

	query := hnsw.NewHashRecord(tlshID(500), 0, hnsw.TLSHMetric{})
	before, err := g.KNNSearch(query, 5, 0)
	require.NoError(t, err)
	after, err := loaded.KNNSearch(query, 5, 0)
	require.NoError(t, err)

	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].Score, after[i].Score)
		assert.ElementsMatch(t, idsOf(before[i].Records), idsOf(after[i].Records))
	}
}

func TestGzipDumpStartsWithGzipMagic(t *testing.T) {
	g, reg := buildGraphWithRegistry(t, 10, 1)
	path := filepath.Join(t.TempDir(), "graph.apo")
	require.NoError(t, Dump(path, g, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 2)
	assert.Equal(t, byte(0x1F), data[0])
	assert.Equal(t, byte(0x8B), data[1])

	loaded, err := Load(path, hnsw.TLSHMetric{}, reg.loader())
	require.NoError(t, err)
	assert.Equal(t, g.Size(), loaded.Size())
}

func TestUncompressedDumpStartsWithMagic(t *testing.T) {
	g, reg := buildGraphWithRegistry(t, 10, 1)
	path := filepath.Join(t.TempDir(), "graph.apo")
	require.NoError(t, Dump(path, g, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 3)
	assert.Equal(t, []byte{'A', 'P', 1}, data[:3])

	_, err = Load(path, hnsw.TLSHMetric{}, reg.loader())
	require.NoError(t, err)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.apo")
	require.NoError(t, os.WriteFile(path, []byte{'X', 'X', 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0o644))

	reg := newMemoryRegistry(hnsw.TLSHMetric{})
	_, err := Load(path, hnsw.TLSHMetric{}, reg.loader())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestLoadDetectsCorruptNodesSection(t *testing.T) {
	g, reg := buildGraphWithRegistry(t, 20, 2)
	path := filepath.Join(t.TempDir(), "graph.apo")
	require.NoError(t, Dump(path, g, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), headerSize+40)

	// Flip one byte well past the header and cfg section, inside the
	// nodes section, so the nodes CRC32 no longer matches.
	corrupt := append([]byte(nil), data...)
	idx := len(corrupt) - 5
	corrupt[idx] ^= 0xFF
	require.NoError(t, os.WriteFile(path, corrupt, 0o644))

	_, err = Load(path, hnsw.TLSHMetric{}, reg.loader())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadCRC)
}

func TestLoadRejectsMetricMismatch(t *testing.T) {
	g, _ := buildGraphWithRegistry(t, 5, 1)
	path := filepath.Join(t.TempDir(), "graph.apo")
	require.NoError(t, Dump(path, g, false))

	reg := newMemoryRegistry(hnsw.SSDEEPMetric{})
	_, err := Load(path, hnsw.SSDEEPMetric{}, reg.loader())
	require.Error(t, err)
	assert.ErrorIs(t, err, hnsw.ErrMetricMismatch)
}

func idsOf(recs []*hnsw.HashRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}
