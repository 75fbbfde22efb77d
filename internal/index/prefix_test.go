package index

import "github.com/fsvxavier/apotheosis/internal/hnsw"

// trieNode is a minimal trie-shaped PrefixIndex test double, grounded on
// the reference implementation's per-character trie over hash strings:
// each node owns one child per alphabet character, and a node holding a
// record marks the end of that record's id.
type trieNode struct {
	children map[byte]*trieNode
	record   *hnsw.HashRecord
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[byte]*trieNode)}
}

// trieIndex implements PrefixIndex over a byte-trie of record ids, for
// exercising IndexFacade's load-then-rebuild contract in tests.
type trieIndex struct {
	root *trieNode
}

func newTrieIndex() *trieIndex {
	return &trieIndex{root: newTrieNode()}
}

func (t *trieIndex) IndexRecord(r *hnsw.HashRecord) {
	n := t.root
	for i := 0; i < len(r.ID()); i++ {
		c := r.ID()[i]
		child, ok := n.children[c]
		if !ok {
			child = newTrieNode()
			n.children[c] = child
		}
		n = child
	}
	n.record = r
}

func (t *trieIndex) RemoveRecord(r *hnsw.HashRecord) {
	n := t.root
	for i := 0; i < len(r.ID()); i++ {
		child, ok := n.children[r.ID()[i]]
		if !ok {
			return
		}
		n = child
	}
	n.record = nil
}

// lookup returns the record stored at the exact id, if any.
func (t *trieIndex) lookup(id string) (*hnsw.HashRecord, bool) {
	n := t.root
	for i := 0; i < len(id); i++ {
		child, ok := n.children[id[i]]
		if !ok {
			return nil, false
		}
		n = child
	}
	if n.record == nil {
		return nil, false
	}
	return n.record, true
}

// count walks the full trie counting indexed records, used to assert
// the "iterate every record once" rebuild contract.
func (t *trieIndex) count() int {
	var walk func(n *trieNode) int
	walk = func(n *trieNode) int {
		c := 0
		if n.record != nil {
			c = 1
		}
		for _, child := range n.children {
			c += walk(child)
		}
		return c
	}
	return walk(t.root)
}
