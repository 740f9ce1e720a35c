package peer

import (
	"fmt"

	"github.com/dreamware/readtrie/internal/edgeword"
	"github.com/dreamware/readtrie/internal/errs"
	"github.com/dreamware/readtrie/internal/rpcproto"
)

// InsertRead begins inserting a brand-new read at the trie root. Only
// the construction driver (peer 0, which owns the root's shard) calls
// this; every other peer only ever sees the continuation via ADD_READ.
func (p *Peer) InsertRead(sequence string, readID uint64) (duplicate bool, existingID uint64, err error) {
	return p.insertLocal(sequence, RootGlobal, readID, 0)
}

// insertLocal is the insert engine: it walks letters of tail starting
// at anchorGlobal, extending the trie as needed, and either finishes
// locally or migrates the remaining tail to the owning peer of a
// cross-shard child via ADD_READ.
func (p *Peer) insertLocal(tail string, anchorGlobal uint64, readID uint64, lettersConsumed int) (duplicate bool, existingID uint64, err error) {
	for {
		if len(tail) == 0 {
			return false, 0, errs.New(errs.InvariantViolation, "insert: empty tail reached", nil)
		}
		if p.ShardOf(anchorGlobal) != p.id {
			return false, 0, errs.New(errs.InvariantViolation,
				fmt.Sprintf("insert: anchor %d belongs to shard %d, not peer %d", anchorGlobal, p.ShardOf(anchorGlobal), p.id), nil)
		}

		local := p.LocalOffset(anchorGlobal)
		cell, rerr := p.table.ReadCell(local)
		if rerr != nil {
			return false, 0, errs.New(errs.IoError, "insert: read_cell", rerr)
		}

		sym := edgeword.SymbolIndex(tail[0])
		last := len(tail) == 1

		if last {
			w := cell.Edges[sym]
			if edgeword.IsTerminal(w) {
				existing := edgeword.Payload(w)
				p.logDuplicate(existing, readID)
				return true, existing, nil
			}
			leaf, merr := edgeword.MakeLeaf(readID)
			if merr != nil {
				return false, 0, errs.New(errs.InvariantViolation, "insert: make_leaf overflow", merr)
			}
			if werr := p.table.WriteEdge(local, sym, leaf); werr != nil {
				return false, 0, errs.New(errs.IoError, "insert: write_edge leaf", werr)
			}
			return false, 0, nil
		}

		w := cell.Edges[sym]
		var childGlobal uint64
		if edgeword.IsEmpty(w) {
			idx, aerr := p.NextFree(p.id)
			if aerr != nil {
				return false, 0, aerr
			}
			childGlobal = idx
			childShard := p.ShardOf(childGlobal)
			if childShard < p.id {
				return false, 0, errs.New(errs.InvariantViolation,
					fmt.Sprintf("insert: allocator returned backward shard %d < %d", childShard, p.id), nil)
			}
			cw, merr := edgeword.MakeChild(childGlobal)
			if merr != nil {
				return false, 0, errs.New(errs.InvariantViolation, "insert: make_child overflow", merr)
			}
			if werr := p.table.WriteEdge(local, sym, cw); werr != nil {
				return false, 0, errs.New(errs.IoError, "insert: write_edge child", werr)
			}
		} else {
			childGlobal = edgeword.Payload(w)
		}

		childShard := p.ShardOf(childGlobal)
		if childShard != p.id {
			return p.addReadRemote(childShard, tail[1:], childGlobal, readID, lettersConsumed+1)
		}
		tail = tail[1:]
		anchorGlobal = childGlobal
		lettersConsumed++
	}
}

// addReadRemote migrates the remaining insert work to the peer owning
// childShard via an ADD_READ RPC.
func (p *Peer) addReadRemote(childShard int, tail string, anchorGlobal uint64, readID uint64, lettersConsumed int) (bool, uint64, error) {
	resp, err := p.transport.Call(childShard, rpcproto.Request{
		Tag: rpcproto.TagAddRead,
		AddRead: &rpcproto.AddReadArgs{
			Tail:            tail,
			AnchorGlobal:    anchorGlobal,
			ReadID:          readID,
			LettersConsumed: lettersConsumed,
		},
	})
	if err != nil {
		return false, 0, errs.New(errs.IoError, "ADD_READ", err)
	}
	if resp.Err != "" {
		return false, 0, errs.New(errs.InvariantViolation, "ADD_READ remote: "+resp.Err, nil)
	}
	if resp.AddRead == nil {
		return false, 0, errs.New(errs.RpcMismatch, "ADD_READ: empty result", nil)
	}
	return resp.AddRead.Duplicate, resp.AddRead.ExistingID, nil
}

// logDuplicate records a duplicate read against the first occurrence's
// identifier. Format: "<existing> <new>\n", one record per duplicate.
func (p *Peer) logDuplicate(existingID, newID uint64) {
	fmt.Fprintf(p.dupLog, "%d %d\n", existingID, newID)
}
