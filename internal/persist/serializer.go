// Package persist implements the binary, CRC32-verified, optionally
// gzip-compressed snapshot format for a hnsw.GraphCore. Dump
// writes cfg, entry-point, and nodes sections each covered by their own
// CRC32; Load verifies every section before trusting it and rebuilds
// the graph through a caller-supplied RecordLoader.
package persist

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
)

// Dump writes g's snapshot to path. When compress is true the output is
// wrapped in gzip and begins with the gzip magic bytes instead of the
// format's own magic; Load detects either transparently. The file is
// written to a temporary sibling and renamed into place so a reader
// never observes a partially-written snapshot.
func Dump(path string, g *hnsw.GraphCore, compress bool) error {
	cfgW := newSectionWriter()
	writeCfg(cfgW, g.Config())

	entryW := newSectionWriter()
	writeEntryRecord(entryW, g.EntryPoint())

	nodesW := newSectionWriter()
	layers := g.LayersAscending()
	nodesW.writeInt32(int32(len(layers)))
	for _, l := range layers {
		nodes := g.NodesAtLayer(l)
		nodesW.writeInt32(int32(l))
		nodesW.writeInt32(int32(len(nodes)))
		for _, n := range nodes {
			writeNodeRecord(nodesW, n, false)
		}
	}

	tmpPath := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("persist: dump %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if err := writeSnapshot(f, compress, cfgW, entryW, nodesW); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persist: dump %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("persist: dump %s: %w", path, err)
	}
	return nil
}

func writeSnapshot(f *os.File, compress bool, cfgW, entryW, nodesW *sectionWriter) error {
	var out io.Writer = f
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		out = gz
	}

	header := make([]byte, headerSize)
	header[0], header[1] = magicA, magicP
	header[2] = formatVersion
	header[3] = 0 // flags: reserved
	binary.LittleEndian.PutUint32(header[4:8], cfgW.crc32())
	binary.LittleEndian.PutUint32(header[8:12], entryW.crc32())
	binary.LittleEndian.PutUint32(header[12:16], nodesW.crc32())

	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("persist: write header: %w", err)
	}
	if _, err := out.Write(cfgW.bytes()); err != nil {
		return fmt.Errorf("persist: write cfg section: %w", err)
	}
	if _, err := out.Write(entryW.bytes()); err != nil {
		return fmt.Errorf("persist: write entry section: %w", err)
	}
	if _, err := out.Write(nodesW.bytes()); err != nil {
		return fmt.Errorf("persist: write nodes section: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("persist: close gzip writer: %w", err)
		}
	}
	return nil
}

type pendingEdge struct {
	pageID    int32
	layer     int32
	neighbors []int32
}

// Load reads a snapshot written by Dump, rebuilding a GraphCore bound to
// metric. Every page id encountered is resolved through loader exactly
// once.
func Load(path string, metric hnsw.DistanceMetric, loader RecordLoader) (*hnsw.GraphCore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persist: load %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	peek, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("persist: load %s: %w", path, err)
	}

	var src io.Reader = br
	if peek[0] == gzipMagic0 && peek[1] == gzipMagic1 {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("persist: load %s: gzip: %w", path, err)
		}
		defer func() { _ = gz.Close() }()
		src = gz
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(src, header); err != nil {
		return nil, fmt.Errorf("persist: load %s: read header: %w", path, err)
	}
	if header[0] != magicA || header[1] != magicP || header[2] != formatVersion {
		return nil, fmt.Errorf("persist: load %s: %w", path, ErrBadFormat)
	}
	storedCfgCRC := binary.LittleEndian.Uint32(header[4:8])
	storedEntryCRC := binary.LittleEndian.Uint32(header[8:12])
	storedNodesCRC := binary.LittleEndian.Uint32(header[12:16])

	cfgR := newSectionReader(src)
	cfg := readCfg(cfgR)
	if cfgR.err != nil {
		return nil, fmt.Errorf("persist: load %s: read cfg: %w", path, cfgR.err)
	}
	if cfgR.crc32() != storedCfgCRC {
		return nil, fmt.Errorf("persist: load %s: cfg section: %w", path, ErrBadCRC)
	}
	if cfg.MetricTag != metric.Tag() {
		return nil, fmt.Errorf("persist: load %s: %w", path, hnsw.ErrMetricMismatch)
	}

	g := hnsw.NewGraphCore(cfg, metric)

	entryR := newSectionReader(src)
	entryNode := readNodeRecord(entryR, true)
	if entryR.err != nil {
		return nil, fmt.Errorf("persist: load %s: read entry: %w", path, entryR.err)
	}
	if entryR.crc32() != storedEntryCRC {
		return nil, fmt.Errorf("persist: load %s: entry section: %w", path, ErrBadCRC)
	}

	pidMap := make(map[int32]*hnsw.HashRecord)
	adopted := make(map[int32]bool)
	var pending []pendingEdge

	if entryNode.pageID != noEntryPageID {
		rec, err := loader.Fetch(int64(entryNode.pageID), metric)
		if err != nil {
			return nil, fmt.Errorf("persist: load %s: %w: %v", path, ErrLoaderFailed, err)
		}
		if err := rec.SetLayer(int(entryNode.layer)); err != nil {
			return nil, fmt.Errorf("persist: load %s: entry layer: %w", path, err)
		}
		pidMap[entryNode.pageID] = rec
		for l, neighbors := range entryNode.neighborhoods {
			pending = append(pending, pendingEdge{pageID: entryNode.pageID, layer: l, neighbors: neighbors})
		}
	}

	nodesR := newSectionReader(src)
	nLayers := nodesR.readInt32()
	for i := int32(0); i < nLayers; i++ {
		layerIdx := nodesR.readInt32()
		nNodes := nodesR.readInt32()
		for j := int32(0); j < nNodes; j++ {
			dn := readNodeRecord(nodesR, false)
			if nodesR.err != nil {
				break
			}
			rec, ok := pidMap[dn.pageID]
			if !ok {
				var err error
				rec, err = loader.Fetch(int64(dn.pageID), metric)
				if err != nil {
					return nil, fmt.Errorf("persist: load %s: %w: %v", path, ErrLoaderFailed, err)
				}
				pidMap[dn.pageID] = rec
			}
			if err := rec.SetLayer(int(layerIdx)); err != nil {
				return nil, fmt.Errorf("persist: load %s: node layer: %w", path, err)
			}
			if !adopted[dn.pageID] {
				g.AdoptRecord(rec)
				adopted[dn.pageID] = true
			}
			for l, neighbors := range dn.neighborhoods {
				pending = append(pending, pendingEdge{pageID: dn.pageID, layer: l, neighbors: neighbors})
			}
		}
	}
	if nodesR.err != nil {
		return nil, fmt.Errorf("persist: load %s: read nodes: %w", path, nodesR.err)
	}
	if nodesR.crc32() != storedNodesCRC {
		return nil, fmt.Errorf("persist: load %s: nodes section: %w", path, ErrBadCRC)
	}

	for _, pe := range pending {
		rec, ok := pidMap[pe.pageID]
		if !ok {
			return nil, fmt.Errorf("persist: load %s: %w", path, ErrCorruptIndex)
		}
		for _, npid := range pe.neighbors {
			nb, ok := pidMap[npid]
			if !ok {
				return nil, fmt.Errorf("persist: load %s: %w", path, ErrCorruptIndex)
			}
			if err := rec.AddNeighbor(int(pe.layer), nb); err != nil {
				return nil, fmt.Errorf("persist: load %s: %w", path, err)
			}
			if err := nb.AddNeighbor(int(pe.layer), rec); err != nil {
				return nil, fmt.Errorf("persist: load %s: %w", path, err)
			}
		}
	}

	if entryNode.pageID != noEntryPageID {
		ep, ok := pidMap[entryNode.pageID]
		if !ok {
			return nil, fmt.Errorf("persist: load %s: %w", path, ErrCorruptIndex)
		}
		g.SetEntryPoint(ep)
	}

	return g, nil
}
