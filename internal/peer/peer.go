// Package peer ties one process's shard table, allocator state, and RPC
// transport together into a single-threaded receiver: a peer either
// drives (issues calls outward) or serves (dispatches one inbound
// Request to completion before accepting the next), never both
// concurrently with itself.
//
// One long-lived struct owns all per-peer state, registered against a
// transport at startup and reachable only through its own methods, so
// several peers can coexist in one address space.
package peer

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/readtrie/internal/errs"
	"github.com/dreamware/readtrie/internal/rpcproto"
	"github.com/dreamware/readtrie/internal/shardtable"
)

// RootGlobal is the trie root's fixed global cell index. Index 0 is
// reserved as the null sentinel.
const RootGlobal uint64 = 1

// Peer is one process's view of the distributed trie: its own shard,
// its allocator cursor, and the transport it reaches every other peer
// through.
type Peer struct {
	id       int
	k        uint
	capacity uint64
	numPeers int

	table     *shardtable.Table
	transport rpcproto.Transport
	log       *logrus.Entry

	// dupLog receives one line per detected duplicate read, in the
	// format "existing new\n". May be io.Discard.
	dupLog io.Writer

	// sorted receives the sorted-unique-reads output; non-nil only on
	// the peer owning the highest shard, the file's sole writer.
	sorted io.Writer

	mu            sync.Mutex
	lastUsedLocal int64 // -1 means the shard is empty
	nextGuy       int
	exiting       bool
}

// Config bundles the fixed parameters a Peer is built with.
type Config struct {
	ID        int
	K         uint // shard-bit exponent; capacity S = 1<<K
	NumPeers  int
	Transport rpcproto.Transport
	Log       *logrus.Entry
	DupLog    io.Writer // may be nil (treated as io.Discard)
	Sorted    io.Writer // non-nil only for the top-shard-owning peer
}

// New builds a Peer. Peer 0's allocator cursor starts at 1 (the root
// already occupies global index 1); every other peer starts at -1,
// an empty shard.
func New(cfg Config) *Peer {
	dup := cfg.DupLog
	if dup == nil {
		dup = io.Discard
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	p := &Peer{
		id:            cfg.ID,
		k:             cfg.K,
		capacity:      uint64(1) << cfg.K,
		numPeers:      cfg.NumPeers,
		table:         shardtable.New(uint64(1) << cfg.K),
		transport:     cfg.Transport,
		log:           log,
		dupLog:        dup,
		sorted:        cfg.Sorted,
		lastUsedLocal: -1,
		nextGuy:       (cfg.ID + 1) % cfg.NumPeers,
	}
	if cfg.ID == 0 {
		p.lastUsedLocal = 1
	}
	return p
}

// PeerID, ShardOf, LocalOffset, ReadCell and Call satisfy
// internal/overlap.Descender.
func (p *Peer) PeerID() int { return p.id }

func (p *Peer) ShardOf(global uint64) int { return int(global >> p.k) }

func (p *Peer) LocalOffset(global uint64) uint64 { return global & (p.capacity - 1) }

func (p *Peer) ReadCell(local uint64) (shardtable.Cell, error) { return p.table.ReadCell(local) }

func (p *Peer) Call(peerID int, req rpcproto.Request) (rpcproto.Response, error) {
	return p.transport.Call(peerID, req)
}

// globalIndex composes this peer's shard id with a local offset.
func (p *Peer) globalIndex(local uint64) uint64 { return (uint64(p.id) << p.k) | local }

// LoadShard reloads this peer's shard from a persisted cell slice, used
// at the start of the overlap phase.
func (p *Peer) LoadShard(cells []shardtable.Cell) error {
	if err := p.table.LoadCells(cells); err != nil {
		return errs.New(errs.IoError, "load shard", err)
	}
	p.mu.Lock()
	p.lastUsedLocal = int64(len(cells)) - 1
	p.mu.Unlock()
	p.log.WithField("op", "load_shard").WithField("cells", len(cells)).Info("shard loaded")
	return nil
}

// UsedCells returns this peer's allocated prefix, for persistence or
// for a DUMP_TRIE reply.
func (p *Peer) UsedCells() ([]shardtable.Cell, error) {
	p.mu.Lock()
	n := p.lastUsedLocal + 1
	p.mu.Unlock()
	if n <= 0 {
		return nil, nil
	}
	return p.table.Slice(uint64(n))
}

// NextFree implements the distributed allocator: serve from this
// peer's own shard while it has room, otherwise forward to the next
// higher peer believed to have space, failing with AllocExhausted when
// none has. callerPeer is not used: the forwarding logic never needs
// to know who ultimately asked.
func (p *Peer) NextFree(callerPeer int) (uint64, error) {
	p.mu.Lock()
	if p.lastUsedLocal+1 < int64(p.capacity) {
		p.lastUsedLocal++
		idx := p.globalIndex(uint64(p.lastUsedLocal))
		p.mu.Unlock()
		return idx, nil
	}
	target := p.nextGuy
	p.mu.Unlock()
	p.log.WithField("op", "next_free").WithField("forward_to", target).Debug("shard full, forwarding allocation")

	// Shards fill in ascending order, so only peers above this one can
	// still have room; the search never wraps back to a lower peer.
	for ; target > p.id && target < p.numPeers; target++ {
		resp, err := p.transport.Call(target, rpcproto.Request{
			Tag:     rpcproto.TagGetNextFree,
			GetNext: &rpcproto.GetNextFreeArgs{CallerPeer: p.id},
		})
		if err != nil {
			return 0, errs.New(errs.IoError, "GET_NEXT_FREE", err)
		}
		if resp.Err != "" {
			// That peer is exhausted too; try the next higher one.
			continue
		}
		p.mu.Lock()
		p.nextGuy = target
		p.mu.Unlock()
		return resp.GetNext.GlobalIndex, nil
	}
	return 0, errs.New(errs.AllocExhausted, "next_free", nil)
}
