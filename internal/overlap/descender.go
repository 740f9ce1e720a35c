// Package overlap implements the suffix locator and subtree enumerator
// that together discover every suffix/prefix overlap between reads,
// migrating across shard boundaries via RPC exactly as the trie insert
// engine does.
package overlap

import (
	"github.com/pkg/errors"

	"github.com/dreamware/readtrie/internal/edgeword"
	"github.com/dreamware/readtrie/internal/rpcproto"
	"github.com/dreamware/readtrie/internal/shardtable"
)

// RootGlobal is the trie root's global cell index.
const RootGlobal uint64 = 1

// Descender is the minimal view of a peer that Locate and PrintOverlaps
// need: read a cell out of the local shard, map a global index to its
// owning shard, know its own id, and place an RPC when work must
// migrate. internal/peer.Peer satisfies this directly.
type Descender interface {
	ReadCell(local uint64) (shardtable.Cell, error)
	ShardOf(global uint64) int
	LocalOffset(global uint64) uint64
	PeerID() int
	Call(peerID int, req rpcproto.Request) (rpcproto.Response, error)
}

// Locate descends the trie from cellGlobal consuming suffix one letter
// at a time. It returns LocateDead the moment an edge is empty, and
// LocateMatched once the whole suffix is consumed: either landing on
// an interior cell (subtree to enumerate with PrintOverlaps) or
// directly on a leaf edge (the suffix is itself a whole read with no
// further extension, reported as a single overlap by the caller).
//
// When the current cell belongs to a different shard than the caller,
// Locate forwards the remaining work via a single LOCATE RPC and
// returns whatever that call reports; migration is one blocking hop,
// not a persistent state object.
func Locate(d Descender, suffix string, cellGlobal uint64, sourceReadID uint64, offset int) (rpcproto.LocateResult, error) {
	for {
		shard := d.ShardOf(cellGlobal)
		if shard != d.PeerID() {
			resp, err := d.Call(shard, rpcproto.Request{
				Tag: rpcproto.TagLocate,
				Locate: &rpcproto.LocateArgs{
					Suffix:       suffix,
					CellGlobal:   cellGlobal,
					SourceReadID: sourceReadID,
					Offset:       offset,
				},
			})
			if err != nil {
				return rpcproto.LocateResult{}, errors.Wrapf(err, "LOCATE to peer %d", shard)
			}
			if resp.Err != "" {
				return rpcproto.LocateResult{}, errors.Errorf("LOCATE on peer %d: %s", shard, resp.Err)
			}
			if resp.Locate == nil {
				return rpcproto.LocateResult{}, errors.Errorf("LOCATE on peer %d: empty result", shard)
			}
			return *resp.Locate, nil
		}

		if suffix == "" {
			// Nothing left to consume and we haven't migrated away: the
			// caller handed us an already-fully-consumed suffix, which only
			// happens for a zero-length probe. Treat the current cell as
			// the matched subtree root.
			return rpcproto.LocateResult{State: rpcproto.LocateMatched, CellGlobal: cellGlobal}, nil
		}

		local := d.LocalOffset(cellGlobal)
		cell, err := d.ReadCell(local)
		if err != nil {
			return rpcproto.LocateResult{}, err
		}

		sym := edgeword.SymbolIndex(suffix[0])
		w := cell.Edges[sym]
		if edgeword.IsEmpty(w) {
			return rpcproto.LocateResult{State: rpcproto.LocateDead}, nil
		}

		rest := suffix[1:]
		if edgeword.IsTerminal(w) {
			if rest != "" {
				// This path ends in a read shorter than the remaining suffix:
				// no read is an exact extension of it, so the probe is dead.
				return rpcproto.LocateResult{State: rpcproto.LocateDead}, nil
			}
			return rpcproto.LocateResult{State: rpcproto.LocateMatched, IsLeaf: true, LeafReadID: edgeword.Payload(w)}, nil
		}

		child := edgeword.Payload(w)
		if rest == "" {
			return rpcproto.LocateResult{State: rpcproto.LocateMatched, CellGlobal: child}, nil
		}
		cellGlobal = child
		suffix = rest
	}
}

// PrintOverlaps enumerates every terminal leaf in the subtree rooted at
// cellGlobal, reporting one OverlapRecord per leaf at the given offset.
// count is the running emission total across the whole probe (it may
// already be nonzero when a sibling subtree on another peer has
// contributed records); maxOverlaps <= 0 means unbounded. Descent
// stops, locally and across every shard it has migrated into, the
// moment the cap is reached.
func PrintOverlaps(d Descender, cellGlobal uint64, sourceReadID uint64, offset int, count int, maxOverlaps int) (rpcproto.PrintResult, error) {
	records, newCount, err := printWalk(d, cellGlobal, sourceReadID, offset, count, maxOverlaps)
	return rpcproto.PrintResult{Count: newCount, Records: records}, err
}

func capReached(count, maxOverlaps int) bool {
	return maxOverlaps > 0 && count >= maxOverlaps
}

func printWalk(d Descender, cellGlobal uint64, sourceReadID uint64, offset int, count int, maxOverlaps int) ([]rpcproto.OverlapRecord, int, error) {
	if capReached(count, maxOverlaps) {
		return nil, count, nil
	}

	shard := d.ShardOf(cellGlobal)
	if shard != d.PeerID() {
		resp, err := d.Call(shard, rpcproto.Request{
			Tag: rpcproto.TagPrint,
			Print: &rpcproto.PrintArgs{
				CellGlobal:   cellGlobal,
				SourceReadID: sourceReadID,
				Offset:       offset,
				Count:        count,
				MaxOverlaps:  maxOverlaps,
			},
		})
		if err != nil {
			return nil, count, errors.Wrapf(err, "PRINT to peer %d", shard)
		}
		if resp.Err != "" {
			return nil, count, errors.Errorf("PRINT on peer %d: %s", shard, resp.Err)
		}
		if resp.Print == nil {
			return nil, count, errors.Errorf("PRINT on peer %d: empty result", shard)
		}
		return resp.Print.Records, resp.Print.Count, nil
	}

	local := d.LocalOffset(cellGlobal)
	cell, err := d.ReadCell(local)
	if err != nil {
		return nil, count, err
	}

	var records []rpcproto.OverlapRecord
	for sym := 0; sym < edgeword.NumSymbols; sym++ {
		if capReached(count, maxOverlaps) {
			break
		}
		w := cell.Edges[sym]
		if edgeword.IsEmpty(w) {
			continue
		}
		if edgeword.IsTerminal(w) {
			records = append(records, rpcproto.OverlapRecord{
				SourceReadID: sourceReadID,
				TargetReadID: edgeword.Payload(w),
				Offset:       offset,
			})
			count++
			continue
		}
		child := edgeword.Payload(w)
		sub, newCount, err := printWalk(d, child, sourceReadID, offset, count, maxOverlaps)
		if err != nil {
			return nil, count, err
		}
		records = append(records, sub...)
		count = newCount
	}
	return records, count, nil
}
