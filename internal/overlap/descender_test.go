package overlap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/readtrie/internal/edgeword"
	"github.com/dreamware/readtrie/internal/rpcproto"
	"github.com/dreamware/readtrie/internal/shardtable"
)

// fakePeer is a single-shard, single-peer Descender used to exercise
// Locate/PrintOverlaps without any RPC machinery. The LOCATE/PRINT
// cross-shard forwarding paths are not exercised by these tests.
type fakePeer struct {
	table *shardtable.Table
}

func newFakePeer(capacity uint64) *fakePeer {
	return &fakePeer{table: shardtable.New(capacity)}
}

func (f *fakePeer) ReadCell(local uint64) (shardtable.Cell, error) { return f.table.ReadCell(local) }
func (f *fakePeer) ShardOf(global uint64) int                      { return 0 }
func (f *fakePeer) LocalOffset(global uint64) uint64               { return global }
func (f *fakePeer) PeerID() int                                    { return 0 }
func (f *fakePeer) Call(peerID int, req rpcproto.Request) (rpcproto.Response, error) {
	panic("fakePeer never migrates")
}

// insertLinear builds a simple path root->c1->c2->...->leaf for seq,
// bypassing the real insert engine (tested separately in internal/peer).
func insertLinear(t *testing.T, f *fakePeer, seq string, readID uint64) {
	t.Helper()
	var next uint64 = 2
	anchor := RootGlobal
	for i, c := range []byte(seq) {
		sym := edgeword.SymbolIndex(c)
		last := i == len(seq)-1
		if last {
			w, err := edgeword.MakeLeaf(readID)
			require.NoError(t, err)
			require.NoError(t, f.table.WriteEdge(anchor, sym, w))
			return
		}
		cell, err := f.table.ReadCell(anchor)
		require.NoError(t, err)
		w := cell.Edges[sym]
		var child uint64
		if edgeword.IsEmpty(w) {
			child = next
			next++
			cw, err := edgeword.MakeChild(child)
			require.NoError(t, err)
			require.NoError(t, f.table.WriteEdge(anchor, sym, cw))
		} else {
			child = edgeword.Payload(w)
		}
		anchor = child
	}
}

func TestLocateMatchedInterior(t *testing.T) {
	f := newFakePeer(64)
	insertLinear(t, f, "AAAA", 0)
	insertLinear(t, f, "AAAC", 1)
	insertLinear(t, f, "AAAG", 2)

	res, err := Locate(f, "AAA", RootGlobal, 99, 1)
	require.NoError(t, err)
	require.Equal(t, rpcproto.LocateMatched, res.State)
	require.False(t, res.IsLeaf)

	printRes, err := PrintOverlaps(f, res.CellGlobal, 99, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, printRes.Records, 3)
}

func TestLocateDeadOnEmptyEdge(t *testing.T) {
	f := newFakePeer(64)
	insertLinear(t, f, "AAAA", 0)

	res, err := Locate(f, "TTT", RootGlobal, 1, 1)
	require.NoError(t, err)
	require.Equal(t, rpcproto.LocateDead, res.State)
}

func TestLocateMatchedLeaf(t *testing.T) {
	f := newFakePeer(64)
	insertLinear(t, f, "ACGT", 7)

	res, err := Locate(f, "ACGT", RootGlobal, 1, 0)
	require.NoError(t, err)
	require.Equal(t, rpcproto.LocateMatched, res.State)
	require.True(t, res.IsLeaf)
	require.Equal(t, uint64(7), res.LeafReadID)
}

func TestLocateDeadWhenSuffixOutlivesLeaf(t *testing.T) {
	f := newFakePeer(64)
	insertLinear(t, f, "AC", 0)

	res, err := Locate(f, "ACGT", RootGlobal, 1, 0)
	require.NoError(t, err)
	require.Equal(t, rpcproto.LocateDead, res.State)
}

func TestPrintOverlapsRespectsMaxOverlaps(t *testing.T) {
	f := newFakePeer(64)
	insertLinear(t, f, "AAAA", 0)
	insertLinear(t, f, "AAAC", 1)
	insertLinear(t, f, "AAAG", 2)
	insertLinear(t, f, "AAAT", 3)

	res, err := Locate(f, "AAA", RootGlobal, 9, 1)
	require.NoError(t, err)

	printRes, err := PrintOverlaps(f, res.CellGlobal, 9, 1, 0, 2)
	require.NoError(t, err)
	require.Len(t, printRes.Records, 2)
	require.Equal(t, 2, printRes.Count)
}
