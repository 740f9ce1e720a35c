package peer

import (
	"encoding/binary"
	"io"

	"github.com/dreamware/readtrie/internal/edgeword"
	"github.com/dreamware/readtrie/internal/errs"
	"github.com/dreamware/readtrie/internal/rpcproto"
	"github.com/dreamware/readtrie/internal/shardtable"
)

// topPeerID is the peer owning the highest shard, the sole writer of
// the -sorted file. Peer ids are dense 0..numPeers-1.
func (p *Peer) topPeerID() int { return p.numPeers - 1 }

// Emit runs the in-order depth-first walk of the whole trie: it visits
// every edge in alphabet order, emitting one sorted-unique-reads line
// per leaf, and migrating across shard boundaries via WALK_TRIE. Only
// the construction driver calls Emit directly, always starting at the
// root.
func (p *Peer) Emit() error {
	return p.walk(RootGlobal, "")
}

func (p *Peer) walk(cellGlobal uint64, prefix string) error {
	shard := p.ShardOf(cellGlobal)
	if shard != p.id {
		resp, err := p.transport.Call(shard, rpcproto.Request{
			Tag:      rpcproto.TagWalkTrie,
			WalkTrie: &rpcproto.WalkTrieArgs{CellGlobal: cellGlobal, PathPrefix: prefix},
		})
		if err != nil {
			return errs.New(errs.IoError, "WALK_TRIE", err)
		}
		if resp.Err != "" {
			return errs.New(errs.InvariantViolation, "WALK_TRIE remote: "+resp.Err, nil)
		}
		return nil
	}

	local := p.LocalOffset(cellGlobal)
	cell, err := p.table.ReadCell(local)
	if err != nil {
		return errs.New(errs.IoError, "walk: read_cell", err)
	}

	for sym := 0; sym < edgeword.NumSymbols; sym++ {
		w := cell.Edges[sym]
		if edgeword.IsEmpty(w) {
			continue
		}
		path := prefix + string(edgeword.SymbolByte(sym))
		if edgeword.IsTerminal(w) {
			if err := p.emitRead(path, edgeword.Payload(w)); err != nil {
				return err
			}
			continue
		}
		child := edgeword.Payload(w)
		if err := p.walk(child, path); err != nil {
			return err
		}
	}
	return nil
}

// emitRead appends one line to the -sorted file, routing through
// OUTPUT_READ if this peer doesn't own the top shard.
func (p *Peer) emitRead(sequence string, readID uint64) error {
	if p.id == p.topPeerID() {
		return p.writeSorted(sequence, readID)
	}
	resp, err := p.transport.Call(p.topPeerID(), rpcproto.Request{
		Tag:        rpcproto.TagOutputRead,
		OutputRead: &rpcproto.OutputReadArgs{Sequence: sequence, ReadID: readID},
	})
	if err != nil {
		return errs.New(errs.IoError, "OUTPUT_READ", err)
	}
	if resp.Err != "" {
		return errs.New(errs.IoError, "OUTPUT_READ remote: "+resp.Err, nil)
	}
	return nil
}

// writeSorted appends one -sorted line: the sequence, a space, then
// the identifier right-aligned in 12 columns.
func (p *Peer) writeSorted(sequence string, readID uint64) error {
	if p.sorted == nil {
		return errs.New(errs.InvariantViolation, "writeSorted called on a peer with no -sorted file", nil)
	}
	if _, err := io.WriteString(p.sorted, sequence); err != nil {
		return errs.New(errs.IoError, "write -sorted", err)
	}
	if _, err := io.WriteString(p.sorted, " "); err != nil {
		return errs.New(errs.IoError, "write -sorted", err)
	}
	line := padRightAligned12(readID)
	if _, err := io.WriteString(p.sorted, line+"\n"); err != nil {
		return errs.New(errs.IoError, "write -sorted", err)
	}
	return nil
}

func padRightAligned12(id uint64) string {
	s := uint64ToString(id)
	for len(s) < 12 {
		s = " " + s
	}
	return s
}

func uint64ToString(id uint64) string {
	if id == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[i:])
}

// Persist writes the on-disk trie image: each shard's used prefix, in
// shard order, pulled from remote peers via DUMP_TRIE and written as
// little-endian 64-bit words in symbol order. Only the construction
// driver calls Persist. It returns last_used_edge, the highest global
// cell index written, which the -meta sidecar records because the
// -edges file itself is a bare concatenation of cells with no header
// to carry it.
func (p *Peer) Persist(w io.Writer) (uint64, error) {
	var totalCells uint64
	for shard := 0; shard < p.numPeers; shard++ {
		var cells []shardtable.Cell
		if shard == p.id {
			c, err := p.UsedCells()
			if err != nil {
				return 0, errs.New(errs.IoError, "persist: local used cells", err)
			}
			cells = c
		} else {
			resp, err := p.transport.Call(shard, rpcproto.Request{Tag: rpcproto.TagDumpTrie, DumpTrie: &rpcproto.DumpTrieArgs{}})
			if err != nil {
				return 0, errs.New(errs.IoError, "DUMP_TRIE", err)
			}
			if resp.Err != "" {
				return 0, errs.New(errs.IoError, "DUMP_TRIE remote: "+resp.Err, nil)
			}
			if resp.DumpTrie != nil {
				cells = resp.DumpTrie.Cells
			}
		}
		for _, cell := range cells {
			for _, edge := range cell.Edges {
				if err := binary.Write(w, binary.LittleEndian, uint64(edge)); err != nil {
					return 0, errs.New(errs.IoError, "persist: write edge word", err)
				}
			}
			totalCells++
		}
	}
	if totalCells == 0 {
		return 0, errs.New(errs.InvariantViolation, "persist: no cells written (root missing)", nil)
	}
	return totalCells - 1, nil
}

// LoadEdgeImage reads a whole -edges file into memory as a flat slice
// of cells, in global-index order, the inverse of Persist. Overlap-
// phase callers slice the result by shard capacity and hand each slice
// to a Peer's LoadShard.
func LoadEdgeImage(r io.Reader) ([]shardtable.Cell, error) {
	var cells []shardtable.Cell
	for {
		var cell shardtable.Cell
		var eof bool
		for i := range cell.Edges {
			var raw uint64
			if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
				if err == io.EOF && i == 0 {
					eof = true
					break
				}
				return nil, errs.New(errs.IoError, "load edge image: short read", err)
			}
			cell.Edges[i] = edgeword.Word(raw)
		}
		if eof {
			break
		}
		cells = append(cells, cell)
	}
	return cells, nil
}
