package shardtable

import (
	"testing"

	"github.com/dreamware/readtrie/internal/edgeword"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	tbl := New(16)
	w := edgeword.MustMakeChild(5)
	require.NoError(t, tbl.WriteEdge(3, edgeword.SymG, w))

	cell, err := tbl.ReadCell(3)
	require.NoError(t, err)
	require.Equal(t, w, cell.Edges[edgeword.SymG])

	// Untouched edges and cells remain zero.
	require.True(t, edgeword.IsEmpty(cell.Edges[edgeword.SymA]))
	other, err := tbl.ReadCell(4)
	require.NoError(t, err)
	for _, e := range other.Edges {
		require.True(t, edgeword.IsEmpty(e))
	}
}

func TestOutOfRange(t *testing.T) {
	tbl := New(4)
	_, err := tbl.ReadCell(4)
	require.Error(t, err)
	require.Error(t, tbl.WriteEdge(4, edgeword.SymA, edgeword.Empty))
	require.Error(t, tbl.WriteEdge(0, 9, edgeword.Empty))
}

func TestSliceAndLoadRoundTrip(t *testing.T) {
	tbl := New(8)
	require.NoError(t, tbl.WriteEdge(0, edgeword.SymA, edgeword.MustMakeChild(1)))
	require.NoError(t, tbl.WriteEdge(1, edgeword.SymC, edgeword.MustMakeLeaf(7)))

	prefix, err := tbl.Slice(2)
	require.NoError(t, err)
	require.Len(t, prefix, 2)

	loaded := New(8)
	require.NoError(t, loaded.LoadCells(prefix))
	cell, err := loaded.ReadCell(1)
	require.NoError(t, err)
	require.True(t, edgeword.IsTerminal(cell.Edges[edgeword.SymC]))
	require.EqualValues(t, 7, edgeword.Payload(cell.Edges[edgeword.SymC]))
}

func TestSliceTooLarge(t *testing.T) {
	tbl := New(4)
	_, err := tbl.Slice(5)
	require.Error(t, err)
}
