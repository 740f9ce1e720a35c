// Command maketrie is the construction-phase driver: it streams a
// four-line-per-record read file into the distributed trie, then
// serializes the sorted-unique-reads file and the on-disk trie image.
//
// Usage:
//
//	maketrie [flags] <input>
//
// In its default, single-process form maketrie simulates -peers peers
// in one address space over rpcproto.LocalTransport, a perfectly
// normal way to run the whole system on one machine. Passing -cluster
// makes this process one peer in a real, networked cluster: -peer-id
// selects which entry of the cluster file this process is, and peers
// talk rpcproto.HTTPTransport instead.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/readtrie/internal/clusterconfig"
	"github.com/dreamware/readtrie/internal/errs"
	"github.com/dreamware/readtrie/internal/logging"
	"github.com/dreamware/readtrie/internal/peer"
	"github.com/dreamware/readtrie/internal/reads"
	"github.com/dreamware/readtrie/internal/rpcproto"
)

const minShardBits = 16

func main() {
	peersFlag := flag.Int("peers", 1, "number of simulated peers (single-process mode)")
	kFlag := flag.Uint("k", minShardBits, "per-shard exponent (S = 2^k cells); clamped to >= 16")
	clusterFlag := flag.String("cluster", "", "path to a cluster topology file for networked mode")
	peerIDFlag := flag.Int("peer-id", -1, "this process's peer id (required with -cluster)")
	listenFlag := flag.String("listen", "", "override this peer's listen address (networked mode)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "syntax: maketrie [flags] <input>")
		os.Exit(1)
	}
	input := flag.Arg(0)

	runID := logging.NewRunID()

	if *clusterFlag != "" {
		runNetworked(input, *clusterFlag, *peerIDFlag, *listenFlag, runID)
		return
	}
	runLocal(input, *peersFlag, clampShardBits(*kFlag), runID)
}

func clampShardBits(k uint) uint {
	if k < minShardBits {
		return minShardBits
	}
	return k
}

// runLocal builds numPeers Peer objects sharing one LocalTransport in
// this process and drives construction from peer 0.
func runLocal(input string, numPeers int, k uint, runID string) {
	if numPeers < 1 {
		fatal(nil, "startup", "peers must be >= 1", nil)
	}
	log := logging.New(runID, 0, "driver")

	lt := rpcproto.NewLocalTransport()
	peers := make([]*peer.Peer, numPeers)
	dupFiles := make([]*os.File, numPeers)

	var sortedFile *os.File
	var err error
	for i := 0; i < numPeers; i++ {
		dupFiles[i], err = os.Create(fmt.Sprintf("%s-dups-%05d", input, i))
		if err != nil {
			fatal(log, "open dup log", err.Error(), nil)
		}
		defer dupFiles[i].Close()
	}
	sortedFile, err = os.Create(input + "-sorted")
	if err != nil {
		fatal(log, "open -sorted", err.Error(), nil)
	}
	defer sortedFile.Close()

	for i := 0; i < numPeers; i++ {
		var sorted io.Writer
		if i == numPeers-1 {
			sorted = sortedFile
		}
		p := peer.New(peer.Config{
			ID:        i,
			K:         k,
			NumPeers:  numPeers,
			Transport: lt,
			Log:       logging.New(runID, i, peerRole(i)),
			DupLog:    dupFiles[i],
			Sorted:    sorted,
		})
		peers[i] = p
		lt.Register(i, p)
	}

	driver := peers[0]
	readLength := driveConstruction(log, driver, input)

	if err := driver.Emit(); err != nil {
		fatal(log, "emit sorted reads", err.Error(), nil)
	}

	edgesFile, err := os.Create(input + "-edges")
	if err != nil {
		fatal(log, "open -edges", err.Error(), nil)
	}
	defer edgesFile.Close()

	bufWriter := bufio.NewWriter(edgesFile)
	lastUsedEdge, err := driver.Persist(bufWriter)
	if err != nil {
		fatal(log, "persist trie", err.Error(), nil)
	}
	if err := bufWriter.Flush(); err != nil {
		fatal(log, "flush -edges", err.Error(), nil)
	}

	writeMeta(log, input, k, readLength, lastUsedEdge, numPeers, runID)
	log.WithField("last_used_edge", lastUsedEdge).Info("construction complete")
}

func peerRole(id int) string {
	if id == 0 {
		return "driver"
	}
	return "server"
}

// runNetworked makes this process peer peerID of a real cluster described
// by the topology at clusterPath: peer 0 streams the input and drives
// construction exactly as runLocal does, issuing rpcproto.HTTPTransport
// calls instead of LocalTransport ones; every other peer just serves
// until it receives EXIT. There is no separate coordinator process;
// peer 0 plays both roles.
func runNetworked(input, clusterPath string, peerID int, listenOverride string, runID string) {
	if peerID < 0 {
		fatal(nil, "startup", "-peer-id is required with -cluster", nil)
	}
	top, err := clusterconfig.LoadTopology(clusterPath)
	if err != nil {
		fatal(nil, "load cluster file", err.Error(), nil)
	}
	if _, err := top.AddrFor(peerID); err != nil {
		fatal(nil, "load cluster file", err.Error(), nil)
	}

	log := logging.New(runID, peerID, peerRole(peerID))
	numPeers := top.NumPeers()

	listen := listenOverride
	if listen == "" {
		addr, err := top.AddrFor(peerID)
		if err != nil {
			fatal(log, "resolve listen address", err.Error(), nil)
		}
		listen = addr
	}

	ht := rpcproto.NewHTTPTransport(top.AddrMap())

	dupFile, err := os.Create(fmt.Sprintf("%s-dups-%05d", input, peerID))
	if err != nil {
		fatal(log, "open dup log", err.Error(), nil)
	}
	defer dupFile.Close()

	var sorted io.Writer
	if peerID == numPeers-1 {
		sortedFile, err := os.Create(input + "-sorted")
		if err != nil {
			fatal(log, "open -sorted", err.Error(), nil)
		}
		defer sortedFile.Close()
		sorted = sortedFile
	}

	p := peer.New(peer.Config{
		ID:        peerID,
		K:         top.ShardBits,
		NumPeers:  numPeers,
		Transport: ht,
		Log:       log,
		DupLog:    dupFile,
		Sorted:    sorted,
	})

	srv := rpcproto.NewServer(p, log)
	listenAddr := listenAddrOf(listen)
	httpSrv := &http.Server{Addr: listenAddr, Handler: srv}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("err", err.Error()).Error("http server stopped")
		}
	}()

	if peerID != 0 {
		waitForExit(p)
		return
	}

	// Peer 0 is the driver: give the other peers a moment to come up,
	// then run construction exactly as in local mode.
	time.Sleep(200 * time.Millisecond)

	readLength := driveConstruction(log, p, input)
	if err := p.Emit(); err != nil {
		fatal(log, "emit sorted reads", err.Error(), nil)
	}

	edgesFile, err := os.Create(input + "-edges")
	if err != nil {
		fatal(log, "open -edges", err.Error(), nil)
	}
	defer edgesFile.Close()

	bufWriter := bufio.NewWriter(edgesFile)
	lastUsedEdge, err := p.Persist(bufWriter)
	if err != nil {
		fatal(log, "persist trie", err.Error(), nil)
	}
	if err := bufWriter.Flush(); err != nil {
		fatal(log, "flush -edges", err.Error(), nil)
	}

	writeMeta(log, input, top.ShardBits, readLength, lastUsedEdge, numPeers, runID)
	log.WithField("last_used_edge", lastUsedEdge).Info("construction complete")

	for other := 1; other < numPeers; other++ {
		if _, err := ht.Call(other, rpcproto.Request{Tag: rpcproto.TagExit, Exit: &rpcproto.ExitArgs{Reason: "construction complete"}}); err != nil {
			log.WithField("peer", other).WithField("err", err.Error()).Warn("EXIT call failed")
		}
	}
}

// listenAddrOf strips a scheme from a peer's dial address (e.g.
// "http://0.0.0.0:9001") to the bare host:port net/http.Server.ListenAndServe
// wants.
func listenAddrOf(addr string) string {
	const prefix = "http://"
	if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
		return addr[len(prefix):]
	}
	return addr
}

// waitForExit blocks a serving (non-driver) peer until it observes EXIT,
// polling briefly since rpcproto.Handler gives it no other signal.
func waitForExit(p *peer.Peer) {
	for !p.Exiting() {
		time.Sleep(50 * time.Millisecond)
	}
}

// driveConstruction streams input through the reader, inserting each
// record and recording its byte offset in the -index file. It returns
// the uniform read length fixed by the first record.
func driveConstruction(log *logrus.Entry, driver *peer.Peer, input string) int {
	in, err := os.Open(input)
	if err != nil {
		fatal(log, "open input", err.Error(), nil)
	}
	defer in.Close()

	indexFile, err := os.Create(input + "-index")
	if err != nil {
		fatal(log, "open -index", err.Error(), nil)
	}
	defer indexFile.Close()
	indexBuf := bufio.NewWriter(indexFile)
	indexWriter := reads.NewIndexWriter(indexBuf)

	r := reads.NewReader(bufio.NewReader(in))
	var readID uint64
	lastLog := time.Now()
	for {
		rec, err := r.Next()
		if err == nil {
			if werr := indexWriter.Write(rec.ByteOffset); werr != nil {
				fatal(log, "write index", werr.Error(), nil)
			}
			dup, existing, ierr := driver.InsertRead(rec.Sequence, readID)
			if ierr != nil {
				fatal(log, "insert read", ierr.Error(), &readID)
			}
			if dup {
				log.WithField("read_id", readID).WithField("existing_id", existing).Debug("duplicate read")
			}
			readID++
			if time.Since(lastLog) > 5*time.Second {
				log.WithField("reads_loaded", readID).Info("progress")
				lastLog = time.Now()
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		fatal(log, "read record", err.Error(), nil)
	}

	if err := indexBuf.Flush(); err != nil {
		fatal(log, "flush -index", err.Error(), nil)
	}
	return r.ReadLength()
}

func writeMeta(log *logrus.Entry, input string, k uint, readLength int, lastUsedEdge uint64, numPeers int, runID string) {
	f, err := os.Create(input + "-meta")
	if err != nil {
		fatal(log, "open -meta", err.Error(), nil)
	}
	defer f.Close()

	meta := clusterconfig.RunMeta{
		ShardBits:    k,
		ReadLength:   readLength,
		LastUsedEdge: lastUsedEdge,
		RunID:        runID,
		NumPeers:     numPeers,
	}
	if err := clusterconfig.WriteMeta(f, meta); err != nil {
		fatal(log, "write -meta", err.Error(), nil)
	}
}

func fatal(log *logrus.Entry, op, cause string, readID *uint64) {
	e := errs.New(errs.IoError, op, fmt.Errorf("%s", cause))
	if log != nil {
		entry := log.WithField("op", op)
		if readID != nil {
			entry = entry.WithField("read_id", *readID)
		}
		entry.Error(e.Error())
	} else {
		fmt.Fprintln(os.Stderr, "maketrie: "+e.Error())
	}
	os.Exit(1)
}
