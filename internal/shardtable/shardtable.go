// Package shardtable implements the per-peer dense cell array: a
// zero-initialized array of S trie cells, each holding five edge words
// (one per A/C/G/T/N), owned exclusively by one peer.
//
// Table exposes single-cell reads and single-edge writes, plus two bulk
// operations, Slice and LoadCells, which the owning peer uses to
// persist its used prefix and to reload it from disk.
package shardtable

import (
	"fmt"
	"sync"

	"github.com/dreamware/readtrie/internal/edgeword"
)

// Cell is one trie node: five edges, indexed by edgeword.Sym*.
type Cell struct {
	Edges [edgeword.NumSymbols]edgeword.Word
}

// Table is the dense, fixed-capacity array backing one peer's shard.
//
// Table itself does not track allocation order; that is the
// distributed allocator's job (internal/peer). Table only guarantees
// that every local offset in [0, Capacity) is a valid, zero-initialized
// cell from construction, and that reads/writes are serialized.
type Table struct {
	mu       sync.RWMutex
	cells    []Cell
	capacity uint64
}

// New allocates a Table able to hold capacity cells, all zero-valued.
// capacity must be a power of two (S = 2^k) so that global indices
// split cleanly into shard id and local offset; New does not itself
// enforce that; the caller (internal/peer, which picks k) is
// responsible, since Table has no reason to know k.
func New(capacity uint64) *Table {
	return &Table{
		cells:    make([]Cell, capacity),
		capacity: capacity,
	}
}

// Capacity returns S, the number of cells this table can hold.
func (t *Table) Capacity() uint64 { return t.capacity }

// ReadCell returns a copy of the cell at the given local offset.
func (t *Table) ReadCell(local uint64) (Cell, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if local >= t.capacity {
		return Cell{}, fmt.Errorf("shardtable: local offset %d out of range [0,%d)", local, t.capacity)
	}
	return t.cells[local], nil
}

// WriteEdge sets one of the five edges of the cell at local to w. A
// leaf edge, once set, must never be overwritten; duplicate detection
// depends on it. WriteEdge does not itself enforce that (the insert
// engine checks the terminator bit before writing a leaf slot); Table
// only guarantees the write lands in the right place.
func (t *Table) WriteEdge(local uint64, symbol int, w edgeword.Word) error {
	if symbol < 0 || symbol >= edgeword.NumSymbols {
		return fmt.Errorf("shardtable: symbol %d out of range", symbol)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if local >= t.capacity {
		return fmt.Errorf("shardtable: local offset %d out of range [0,%d)", local, t.capacity)
	}
	t.cells[local].Edges[symbol] = w
	return nil
}

// Slice returns the first n cells, in local-offset order, for
// persistence (only the used prefix of each shard is written to disk).
// The returned slice aliases the table's backing array and must not be
// mutated by the caller.
func (t *Table) Slice(n uint64) ([]Cell, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n > t.capacity {
		return nil, fmt.Errorf("shardtable: requested prefix %d exceeds capacity %d", n, t.capacity)
	}
	return t.cells[:n], nil
}

// LoadCells overwrites the table's contents starting at local offset 0,
// used when a peer reloads its shard from the persisted -edges file at
// the start of the overlap phase.
func (t *Table) LoadCells(cells []Cell) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(len(cells)) > t.capacity {
		return fmt.Errorf("shardtable: loaded %d cells exceeds capacity %d", len(cells), t.capacity)
	}
	copy(t.cells, cells)
	return nil
}
