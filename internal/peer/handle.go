package peer

import (
	"github.com/dreamware/readtrie/internal/edgeword"
	"github.com/dreamware/readtrie/internal/overlap"
	"github.com/dreamware/readtrie/internal/rpcproto"
)

// Handle dispatches one inbound Request to completion, satisfying
// rpcproto.Handler. A Transport must never call Handle again for this
// peer until this call returns; LocalTransport and rpcproto.Server both
// enforce that externally, so Handle itself assumes it is never
// re-entered.
func (p *Peer) Handle(req rpcproto.Request) rpcproto.Response {
	switch req.Tag {
	case rpcproto.TagAddRead:
		return p.handleAddRead(req.AddRead)
	case rpcproto.TagGetNextFree:
		return p.handleGetNextFree(req.GetNext)
	case rpcproto.TagOutputRead:
		return p.handleOutputRead(req.OutputRead)
	case rpcproto.TagWalkTrie:
		return p.handleWalkTrie(req.WalkTrie)
	case rpcproto.TagDumpTrie:
		return p.handleDumpTrie()
	case rpcproto.TagLocate:
		return p.handleLocate(req.Locate)
	case rpcproto.TagPrint:
		return p.handlePrint(req.Print)
	case rpcproto.TagReadCell:
		return p.handleReadCell(req.ReadCell)
	case rpcproto.TagWriteCell:
		return p.handleWriteCell(req.WriteCell)
	case rpcproto.TagExit:
		p.mu.Lock()
		p.exiting = true
		p.mu.Unlock()
		return rpcproto.Response{Exit: &rpcproto.ExitResult{}}
	default:
		return rpcproto.Response{Err: "unknown rpc tag: " + req.Tag.String()}
	}
}

// Exiting reports whether this peer has received EXIT.
func (p *Peer) Exiting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exiting
}

func (p *Peer) handleAddRead(args *rpcproto.AddReadArgs) rpcproto.Response {
	if args == nil {
		return rpcproto.Response{Err: "ADD_READ: missing args"}
	}
	dup, existing, err := p.insertLocal(args.Tail, args.AnchorGlobal, args.ReadID, args.LettersConsumed)
	if err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{AddRead: &rpcproto.AddReadResult{Duplicate: dup, ExistingID: existing}}
}

func (p *Peer) handleGetNextFree(args *rpcproto.GetNextFreeArgs) rpcproto.Response {
	caller := 0
	if args != nil {
		caller = args.CallerPeer
	}
	idx, err := p.NextFree(caller)
	if err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{GetNext: &rpcproto.GetNextFreeResult{GlobalIndex: idx}}
}

func (p *Peer) handleOutputRead(args *rpcproto.OutputReadArgs) rpcproto.Response {
	if args == nil {
		return rpcproto.Response{Err: "OUTPUT_READ: missing args"}
	}
	if err := p.writeSorted(args.Sequence, args.ReadID); err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{OutputRead: &rpcproto.OutputReadResult{}}
}

func (p *Peer) handleWalkTrie(args *rpcproto.WalkTrieArgs) rpcproto.Response {
	if args == nil {
		return rpcproto.Response{Err: "WALK_TRIE: missing args"}
	}
	if err := p.walk(args.CellGlobal, args.PathPrefix); err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{WalkTrie: &rpcproto.WalkTrieResult{}}
}

func (p *Peer) handleDumpTrie() rpcproto.Response {
	cells, err := p.UsedCells()
	if err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{DumpTrie: &rpcproto.DumpTrieResult{Cells: cells}}
}

func (p *Peer) handleLocate(args *rpcproto.LocateArgs) rpcproto.Response {
	if args == nil {
		return rpcproto.Response{Err: "LOCATE: missing args"}
	}
	res, err := overlap.Locate(p, args.Suffix, args.CellGlobal, args.SourceReadID, args.Offset)
	if err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{Locate: &res}
}

func (p *Peer) handlePrint(args *rpcproto.PrintArgs) rpcproto.Response {
	if args == nil {
		return rpcproto.Response{Err: "PRINT: missing args"}
	}
	res, err := overlap.PrintOverlaps(p, args.CellGlobal, args.SourceReadID, args.Offset, args.Count, args.MaxOverlaps)
	if err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{Print: &res}
}

func (p *Peer) handleReadCell(args *rpcproto.ReadCellArgs) rpcproto.Response {
	if args == nil {
		return rpcproto.Response{Err: "READ_CELL: missing args"}
	}
	local := p.LocalOffset(args.CellGlobal)
	cell, err := p.table.ReadCell(local)
	if err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{ReadCell: &rpcproto.ReadCellResult{Cell: cell}}
}

func (p *Peer) handleWriteCell(args *rpcproto.WriteCellArgs) rpcproto.Response {
	if args == nil {
		return rpcproto.Response{Err: "WRITE_CELL: missing args"}
	}
	local := p.LocalOffset(args.CellGlobal)
	if err := p.table.WriteEdge(local, args.Symbol, edgeword.Word(args.Word)); err != nil {
		return rpcproto.Response{Err: err.Error()}
	}
	return rpcproto.Response{WriteCell: &rpcproto.WriteCellResult{}}
}
