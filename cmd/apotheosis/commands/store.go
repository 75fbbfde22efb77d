package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
	"github.com/fsvxavier/apotheosis/internal/persist"
)

// registry is the driver's own page_id -> hash-string bookkeeping,
// persisted as a small JSON sidecar next to the snapshot. It plays the
// role of a RecordLoader for the CLI only; a real deployment supplies
// its own record-store-backed RecordLoader (that backend stays an
// external collaborator — this is not it).
type registry struct {
	path   string
	NextID int64            `json:"next_id"`
	ByPage map[int64]string `json:"by_page"`
	ByHash map[string]int64 `json:"by_hash"`
}

func registryPath(snapshotPath string) string {
	return snapshotPath + ".registry.json"
}

func loadRegistry(snapshotPath string) (*registry, error) {
	path := registryPath(snapshotPath)
	r := &registry{path: path, ByPage: map[int64]string{}, ByHash: map[string]int64{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apotheosis: read registry %s: %w", path, err)
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("apotheosis: parse registry %s: %w", path, err)
	}
	r.path = path
	return r, nil
}

func (r *registry) save() error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("apotheosis: encode registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("apotheosis: write registry %s: %w", r.path, err)
	}
	return nil
}

// assign returns the page id for id, minting a new one if unseen.
func (r *registry) assign(id string) int64 {
	if pageID, ok := r.ByHash[id]; ok {
		return pageID
	}
	pageID := r.NextID
	r.NextID++
	r.ByHash[id] = pageID
	r.ByPage[pageID] = id
	return pageID
}

// loader adapts the registry to persist.RecordLoader.
func (r *registry) loader() persist.RecordLoader {
	return persist.RecordLoaderFunc(func(pageID int64, metric hnsw.DistanceMetric) (*hnsw.HashRecord, error) {
		id, ok := r.ByPage[pageID]
		if !ok {
			return nil, fmt.Errorf("apotheosis: registry has no id for page %d", pageID)
		}
		return hnsw.NewHashRecord(id, pageID, metric), nil
	})
}
