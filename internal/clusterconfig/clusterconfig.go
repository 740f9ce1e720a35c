// Package clusterconfig loads the static cluster topology a
// construction or overlap run needs: which peers exist, where they
// listen, and the shard-bit count k that fixes S = 2^k cells per
// shard. Topology comes from a JSON file; per-process identity comes
// from environment variables.
package clusterconfig

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// PeerAddr names one peer's id and network address. Peer ids are dense
// 0..len(Peers)-1 and double as the shard ordering: peer i owns shard i.
type PeerAddr struct {
	ID   int    `json:"id"`
	Addr string `json:"addr"`
}

// Topology is the cluster-wide configuration every peer must agree on:
// the full peer list (same order on every peer) and the shard-bit count.
type Topology struct {
	Peers     []PeerAddr `json:"peers"`
	ShardBits uint       `json:"shard_bits"`
}

// LoadTopology reads a Topology from a JSON file. Every peer in one
// run must load the same file.
func LoadTopology(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, errors.Wrapf(err, "reading cluster file %s", path)
	}
	var top Topology
	if err := json.Unmarshal(data, &top); err != nil {
		return Topology{}, errors.Wrapf(err, "parsing cluster file %s", path)
	}
	if len(top.Peers) == 0 {
		return Topology{}, errors.Errorf("cluster file %s: no peers listed", path)
	}
	if top.ShardBits == 0 {
		return Topology{}, errors.Errorf("cluster file %s: shard_bits must be > 0", path)
	}
	for i, p := range top.Peers {
		if p.ID != i {
			return Topology{}, errors.Errorf("cluster file %s: peers must be listed in dense id order, got id %d at position %d", path, p.ID, i)
		}
	}
	return top, nil
}

// AddrFor returns the address of peerID, or an error if no such peer is
// listed.
func (t Topology) AddrFor(peerID int) (string, error) {
	if peerID < 0 || peerID >= len(t.Peers) {
		return "", errors.Errorf("clusterconfig: peer %d not in topology (have %d peers)", peerID, len(t.Peers))
	}
	return t.Peers[peerID].Addr, nil
}

// AddrMap returns the peer-id-to-address table an HTTPTransport needs.
func (t Topology) AddrMap() map[int]string {
	out := make(map[int]string, len(t.Peers))
	for _, p := range t.Peers {
		out[p.ID] = p.Addr
	}
	return out
}

// NumPeers returns the number of peers in the topology.
func (t Topology) NumPeers() int { return len(t.Peers) }

// RunMeta is the `<input>-meta` sidecar `maketrie` writes next to
// `-edges`/`-index`/`-sorted` and `findoverlaps` reads back. The
// `-edges` file's byte length must be exactly `40*(last_used_edge+1)`,
// so the shard-bit count `k` used to build it cannot be smuggled into
// a header there without breaking that; it travels here instead.
type RunMeta struct {
	ShardBits    uint   `json:"k"`
	ReadLength   int    `json:"read_length"`
	LastUsedEdge uint64 `json:"last_used_edge"`
	RunID        string `json:"run_id"`
	NumPeers     int    `json:"num_peers"`
}

// WriteMeta marshals m as indented JSON to w.
func WriteMeta(w io.Writer, m RunMeta) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return errors.Wrap(err, "writing run meta")
	}
	return nil
}

// LoadMeta reads a RunMeta previously written by WriteMeta from path.
func LoadMeta(path string) (RunMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunMeta{}, errors.Wrapf(err, "reading meta file %s", path)
	}
	var m RunMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return RunMeta{}, errors.Wrapf(err, "parsing meta file %s", path)
	}
	return m, nil
}

// Config is one process's runtime configuration: which peer it is, what
// it listens on, and the topology it was launched with.
type Config struct {
	PeerID   int
	Listen   string
	Topology Topology
}

// Environment variable names a networked peer is launched with.
const (
	envPeerID     = "READTRIE_PEER_ID"
	envListen     = "READTRIE_LISTEN"
	envClusterCSV = "READTRIE_CLUSTER_FILE"
)

// FromEnv builds a Config from the environment: required identity and
// topology variables, with a sensible default listen address.
func FromEnv() (Config, error) {
	idStr := os.Getenv(envPeerID)
	if idStr == "" {
		return Config{}, errors.Errorf("%s is required", envPeerID)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return Config{}, errors.Wrapf(err, "parsing %s=%q", envPeerID, idStr)
	}

	clusterFile := os.Getenv(envClusterCSV)
	if clusterFile == "" {
		return Config{}, errors.Errorf("%s is required", envClusterCSV)
	}
	top, err := LoadTopology(clusterFile)
	if err != nil {
		return Config{}, err
	}
	if _, err := top.AddrFor(id); err != nil {
		return Config{}, err
	}

	listen := os.Getenv(envListen)
	if listen == "" {
		listen = ":9000"
	}

	return Config{PeerID: id, Listen: listen, Topology: top}, nil
}
