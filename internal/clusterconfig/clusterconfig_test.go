package clusterconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTopology(t *testing.T, dir string, top string) string {
	t.Helper()
	path := filepath.Join(dir, "cluster.json")
	require.NoError(t, os.WriteFile(path, []byte(top), 0o644))
	return path
}

func TestLoadTopologyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeTopology(t, dir, `{
		"peers": [{"id":0,"addr":"http://127.0.0.1:9000"},{"id":1,"addr":"http://127.0.0.1:9001"}],
		"shard_bits": 20
	}`)

	top, err := LoadTopology(path)
	require.NoError(t, err)
	require.Equal(t, uint(20), top.ShardBits)
	require.Equal(t, 2, top.NumPeers())

	addr, err := top.AddrFor(1)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9001", addr)

	_, err = top.AddrFor(5)
	require.Error(t, err)

	m := top.AddrMap()
	require.Equal(t, "http://127.0.0.1:9000", m[0])
}

func TestLoadTopologyRejectsGaps(t *testing.T) {
	dir := t.TempDir()
	path := writeTopology(t, dir, `{"peers":[{"id":0,"addr":"a"},{"id":2,"addr":"b"}],"shard_bits":4}`)
	_, err := LoadTopology(path)
	require.Error(t, err)
}

func TestLoadTopologyRejectsZeroShardBits(t *testing.T) {
	dir := t.TempDir()
	path := writeTopology(t, dir, `{"peers":[{"id":0,"addr":"a"}],"shard_bits":0}`)
	_, err := LoadTopology(path)
	require.Error(t, err)
}

func TestFromEnvRequiresPeerID(t *testing.T) {
	t.Setenv(envPeerID, "")
	t.Setenv(envClusterCSV, "")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeTopology(t, dir, `{"peers":[{"id":0,"addr":"http://127.0.0.1:9000"}],"shard_bits":10}`)

	t.Setenv(envPeerID, "0")
	t.Setenv(envClusterCSV, path)
	t.Setenv(envListen, "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 0, cfg.PeerID)
	require.Equal(t, ":9000", cfg.Listen)
	require.Equal(t, uint(10), cfg.Topology.ShardBits)
}

func TestRunMetaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq-meta")

	want := RunMeta{ShardBits: 20, ReadLength: 36, LastUsedEdge: 1234, RunID: "abc-123", NumPeers: 4}
	var buf bytes.Buffer
	require.NoError(t, WriteMeta(&buf, want))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := LoadMeta(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLoadMetaMissingFile(t *testing.T) {
	_, err := LoadMeta(filepath.Join(t.TempDir(), "nope-meta"))
	require.Error(t, err)
}
