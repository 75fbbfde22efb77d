package persist

import (
	"bytes"
	"encoding/binary"
	"hash"
	"hash/crc32"
	"io"
	"math"

	"github.com/fsvxavier/apotheosis/internal/hnsw"
)

const (
	magicA       = 'A'
	magicP       = 'P'
	formatVersion byte = 1

	gzipMagic0 = 0x1F
	gzipMagic1 = 0x8B

	headerSize = 16 // magic(2) + version(1) + flags(1) + 3 * crc32(4)

	// noEntryPageID sentinel marks "graph had no entry point at dump
	// time" in the entry-point section, since the node record format has
	// no room for an explicit presence flag.
	noEntryPageID int32 = -1
)

// sectionWriter buffers one snapshot section while accumulating its
// CRC32, matching the two-pass dump procedure: the whole section
// is built in memory, then the buffer and its checksum are both known
// before anything touches the output file.
type sectionWriter struct {
	buf bytes.Buffer
}

func newSectionWriter() *sectionWriter { return &sectionWriter{} }

func (w *sectionWriter) writeInt32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	w.buf.Write(tmp[:])
}

func (w *sectionWriter) writeByte(b byte) { w.buf.WriteByte(b) }

func (w *sectionWriter) writeBool(b bool) {
	if b {
		w.writeByte(1)
		return
	}
	w.writeByte(0)
}

func (w *sectionWriter) writeFloat32(f float32) {
	w.writeInt32(int32(math.Float32bits(f)))
}

func (w *sectionWriter) bytes() []byte { return w.buf.Bytes() }

func (w *sectionWriter) crc32() uint32 { return crc32.ChecksumIEEE(w.buf.Bytes()) }

// sectionReader reads one snapshot section from a shared stream while
// accumulating its CRC32 over every byte consumed, so the running
// checksum can be compared against the stored one once the section's
// logical end is reached (the format carries no explicit section
// length — only the decoded structure tells the reader where to stop).
type sectionReader struct {
	r   io.Reader
	h   hash.Hash32
	err error
}

func newSectionReader(r io.Reader) *sectionReader {
	return &sectionReader{r: r, h: crc32.NewIEEE()}
}

func (s *sectionReader) readN(n int) []byte {
	if s.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		s.err = err
		return nil
	}
	s.h.Write(buf)
	return buf
}

func (s *sectionReader) readInt32() int32 {
	b := s.readN(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (s *sectionReader) readByte() byte {
	b := s.readN(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (s *sectionReader) readFloat32() float32 {
	b := s.readN(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (s *sectionReader) crc32() uint32 { return s.h.Sum32() }

// decodedNode is the in-memory form of one "node record": a page
// id, an optional layer (only present for the entry-point record), and
// its neighbor page ids grouped by layer.
type decodedNode struct {
	pageID        int32
	layer         int32 // -1 when not read (non-entry records carry their layer via the outer per-layer loop instead)
	neighborhoods map[int32][]int32
}

func writeCfg(w *sectionWriter, cfg hnsw.GraphConfig) {
	w.writeInt32(int32(cfg.M))
	w.writeInt32(int32(cfg.Ef))
	w.writeInt32(int32(cfg.Mmax))
	w.writeInt32(int32(cfg.Mmax0))
	w.writeByte(byte(cfg.MetricTag))
	w.writeBool(cfg.Heuristic)
	w.writeBool(cfg.ExtendCandidates)
	w.writeBool(cfg.KeepPrunedConns)
	w.writeFloat32(cfg.BeerFactor)
}

func readCfg(r *sectionReader) hnsw.GraphConfig {
	var cfg hnsw.GraphConfig
	cfg.M = int(r.readInt32())
	cfg.Ef = int(r.readInt32())
	cfg.Mmax = int(r.readInt32())
	cfg.Mmax0 = int(r.readInt32())
	cfg.MetricTag = hnsw.MetricTag(r.readByte())
	cfg.Heuristic = r.readByte() != 0
	cfg.ExtendCandidates = r.readByte() != 0
	cfg.KeepPrunedConns = r.readByte() != 0
	cfg.BeerFactor = r.readFloat32()
	return cfg
}

// writeNodeRecord encodes one node's neighborhoods across every layer it
// participates in, 0..r.Layer() inclusive. withLayer additionally writes
// the record's own layer, used only for the dedicated entry-point
// section.
func writeNodeRecord(w *sectionWriter, r *hnsw.HashRecord, withLayer bool) {
	w.writeInt32(int32(r.PageID()))
	if withLayer {
		w.writeInt32(int32(r.Layer()))
	}
	w.writeInt32(int32(r.Layer() + 1))
	for l := 0; l <= r.Layer(); l++ {
		neighbors := r.NeighborsAt(l)
		w.writeInt32(int32(l))
		w.writeInt32(int32(len(neighbors)))
		for _, n := range neighbors {
			w.writeInt32(int32(n.PageID()))
		}
	}
}

// writeEntryRecord writes the dedicated entry-point section. A nil ep
// (empty graph at dump time) writes the noEntryPageID sentinel with no
// neighborhoods, so an empty-graph round trip always has a well-formed
// entry section to read back (seed suite scenario 1).
func writeEntryRecord(w *sectionWriter, ep *hnsw.HashRecord) {
	if ep == nil {
		w.writeInt32(noEntryPageID)
		w.writeInt32(noEntryPageID) // layer sentinel
		w.writeInt32(0)             // n_neighborhoods
		return
	}
	writeNodeRecord(w, ep, true)
}

func readNodeRecord(r *sectionReader, withLayer bool) *decodedNode {
	dn := &decodedNode{layer: -1}
	dn.pageID = r.readInt32()
	if withLayer {
		dn.layer = r.readInt32()
	}
	n := r.readInt32()
	dn.neighborhoods = make(map[int32][]int32, n)
	for i := int32(0); i < n; i++ {
		layer := r.readInt32()
		count := r.readInt32()
		ids := make([]int32, count)
		for j := range ids {
			ids[j] = r.readInt32()
		}
		dn.neighborhoods[layer] = ids
	}
	return dn
}
