package peer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/readtrie/internal/rpcproto"
)

// cluster builds n peers sharing a LocalTransport, each with its own
// dup log and with the top peer wired to a shared -sorted buffer.
type cluster struct {
	peers  []*Peer
	dup    []*bytes.Buffer
	sorted *bytes.Buffer
}

func newCluster(t *testing.T, n int, k uint) *cluster {
	t.Helper()
	lt := rpcproto.NewLocalTransport()
	c := &cluster{sorted: &bytes.Buffer{}}
	for i := 0; i < n; i++ {
		dup := &bytes.Buffer{}
		c.dup = append(c.dup, dup)
		var sorted *bytes.Buffer
		if i == n-1 {
			sorted = c.sorted
		}
		p := New(Config{ID: i, K: k, NumPeers: n, Transport: lt, DupLog: dup, Sorted: sorted})
		c.peers = append(c.peers, p)
		lt.Register(i, p)
	}
	return c
}

func TestInsertSingleShardThreeReads(t *testing.T) {
	c := newCluster(t, 1, 16)
	driver := c.peers[0]

	for i, seq := range []string{"AAAA", "AAAC", "AAAG"} {
		dup, _, err := driver.InsertRead(seq, uint64(i))
		require.NoError(t, err)
		require.False(t, dup)
	}

	require.NoError(t, driver.Emit())
	want := "AAAA " + padRightAligned12(0) + "\n" +
		"AAAC " + padRightAligned12(1) + "\n" +
		"AAAG " + padRightAligned12(2) + "\n"
	require.Equal(t, want, c.sorted.String())
}

func TestInsertDuplicateDetection(t *testing.T) {
	c := newCluster(t, 1, 16)
	driver := c.peers[0]

	dup0, _, err := driver.InsertRead("ACGT", 0)
	require.NoError(t, err)
	require.False(t, dup0)

	dup1, existing, err := driver.InsertRead("ACGT", 1)
	require.NoError(t, err)
	require.True(t, dup1)
	require.Equal(t, uint64(0), existing)

	require.Equal(t, "0 1\n", c.dup[0].String())
}

func TestInsertCrossShardMigration(t *testing.T) {
	// k=3 => S=8 cells per shard. Each read needs five fresh cells, so
	// the first read nearly fills shard 0 and the rest are allocated on,
	// and inserted through, shards 1 and 2.
	c := newCluster(t, 4, 3)
	driver := c.peers[0]

	reads := []string{"AAAAAA", "CCCCCC", "GGGGGG", "TTTTTT"}
	for i, seq := range reads {
		dup, _, err := driver.InsertRead(seq, uint64(i))
		require.NoError(t, err)
		require.False(t, dup)
	}

	require.NoError(t, driver.Emit())
	lines := strings.Split(strings.TrimRight(c.sorted.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "AAAAAA"))
	require.True(t, strings.HasPrefix(lines[1], "CCCCCC"))
	require.True(t, strings.HasPrefix(lines[2], "GGGGGG"))
	require.True(t, strings.HasPrefix(lines[3], "TTTTTT"))
}

func TestPersistRoundTrip(t *testing.T) {
	c := newCluster(t, 2, 2)
	driver := c.peers[0]

	for i, seq := range []string{"AAAA", "AAAC"} {
		_, _, err := driver.InsertRead(seq, uint64(i))
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	lastUsed, err := driver.Persist(&buf)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Len()%40, "edges file length must be a multiple of 40 bytes")
	require.Equal(t, uint64(buf.Len()/40-1), lastUsed)

	cells, err := LoadEdgeImage(&buf)
	require.NoError(t, err)
	require.Equal(t, int(lastUsed)+1, len(cells))
}

func TestAllocExhausted(t *testing.T) {
	// k=1 => S=2, peer 0 starts at last_used_local=1 (root occupies slot 1),
	// so peer 0 has zero free cells of its own; with a single peer there is
	// nowhere to forward to, and allocation fails immediately.
	c := newCluster(t, 1, 1)
	driver := c.peers[0]

	_, _, err := driver.InsertRead("AAAA", 0)
	require.Error(t, err)
}
