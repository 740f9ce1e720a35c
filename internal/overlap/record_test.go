package overlap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/readtrie/internal/rpcproto"
)

func TestWriteAnchor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnchor(&buf, 7, 3, 42))
	require.Equal(t, "7:3 @42\n", buf.String())
}

func TestWriteOverlap(t *testing.T) {
	var buf bytes.Buffer
	rec := rpcproto.OverlapRecord{SourceReadID: 7, TargetReadID: 12, Offset: 3}
	require.NoError(t, WriteOverlap(&buf, rec))
	require.Equal(t, "7 12 3\n", buf.String())
}

func TestWriteAFG(t *testing.T) {
	var buf bytes.Buffer
	rec := rpcproto.OverlapRecord{SourceReadID: 7, TargetReadID: 12, Offset: 3}
	require.NoError(t, WriteAFG(&buf, rec))

	// Identifiers are one-based, scr is always 0, and ahg and bhg both
	// carry the offset.
	want := "{OVL\nadj:N\nrds:8,13\nscr:0\nahg:3\nbhg:3\n}\n"
	require.Equal(t, want, buf.String())
}

func TestWriteAFGZeroOffsetSelfOverlap(t *testing.T) {
	var buf bytes.Buffer
	rec := rpcproto.OverlapRecord{SourceReadID: 0, TargetReadID: 0, Offset: 0}
	require.NoError(t, WriteAFG(&buf, rec))
	require.Equal(t, "{OVL\nadj:N\nrds:1,1\nscr:0\nahg:0\nbhg:0\n}\n", buf.String())
}
