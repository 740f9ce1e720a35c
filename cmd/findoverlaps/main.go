// Command findoverlaps is the overlap-discovery phase driver: it
// reloads a trie persisted by maketrie, partitions its peer pool into
// replica groups, and has each group's driver probe every suffix of
// its share of the sorted-unique reads, emitting overlap records.
//
// Usage:
//
//	findoverlaps [flags] <input>
//
// <input> must have a matching <input>-meta, <input>-edges and
// <input>-sorted produced by a prior `maketrie <input>` run. Like
// maketrie, findoverlaps defaults to a single-process simulation over
// rpcproto.LocalTransport and switches to a networked rpcproto.HTTPTransport
// when -cluster is given.
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
	"github.com/dreamware/readtrie/internal/group"
	"github.com/dreamware/readtrie/internal/logging"
	"github.com/dreamware/readtrie/internal/overlap"
	"github.com/dreamware/readtrie/internal/peer"
	"github.com/dreamware/readtrie/internal/reads"
	"github.com/dreamware/readtrie/internal/rpcproto"
	"github.com/dreamware/readtrie/internal/shardtable"
)

// Expansion mode trades recall for quality with a higher minimum
// overlap length and a hard per-anchor cap; raw mode defers both since
// nothing is expanded yet.
const (
	expandMinOverlap  = 14
	expandMaxOverlaps = 8
	rawMinOverlap     = 1
	rawMaxOverlaps    = 0 // unbounded
)

func main() {
	peersFlag := flag.Int("peers", 0, "number of simulated peers (single-process mode); 0 uses the peer count recorded in -meta")
	clusterFlag := flag.String("cluster", "", "path to a cluster topology file for networked mode")
	peerIDFlag := flag.Int("peer-id", -1, "this process's peer id (required with -cluster)")
	listenFlag := flag.String("listen", "", "override this peer's listen address (networked mode)")
	expandFlag := flag.Bool("expand", false, "expand matched subtrees into concrete overlap records instead of raw anchor pointers")
	afgFlag := flag.Bool("afg", false, "write AMOS-style {OVL} blocks instead of plain id/id/offset triples (implies -expand)")
	lMinFlag := flag.Int("l-min", -1, "minimum overlap length; -1 uses the mode default (14 expanded, 1 raw)")
	maxOverlapsFlag := flag.Int("max-overlaps", -1, "maximum overlap records per anchor; -1 uses the mode default (8 expanded, unbounded raw); only applies with -expand")
	includeSelfFlag := flag.Bool("include-self", true, "report a read's overlap with itself")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "syntax: findoverlaps [flags] <input>")
		os.Exit(1)
	}
	input := flag.Arg(0)

	meta, err := clusterconfig.LoadMeta(input + "-meta")
	if err != nil {
		fatal(nil, "load -meta", err.Error())
	}

	// AFG records are always expanded pairwise overlaps.
	expand := *expandFlag || *afgFlag

	cfg := modeConfig{
		expand:      expand,
		afg:         *afgFlag,
		includeSelf: *includeSelfFlag,
		lMin:        resolveLMin(expand, *lMinFlag),
		maxOverlaps: resolveMaxOverlaps(expand, *maxOverlapsFlag),
	}

	runID := logging.NewRunID()

	if *clusterFlag != "" {
		runNetworked(input, *clusterFlag, *peerIDFlag, *listenFlag, runID, meta, cfg)
		return
	}

	numPeers := *peersFlag
	if numPeers == 0 {
		numPeers = meta.NumPeers
	}
	runLocal(input, numPeers, runID, meta, cfg)
}

func resolveLMin(expand bool, flagVal int) int {
	if flagVal >= 0 {
		return flagVal
	}
	if expand {
		return expandMinOverlap
	}
	return rawMinOverlap
}

func resolveMaxOverlaps(expand bool, flagVal int) int {
	if !expand {
		return rawMaxOverlaps
	}
	if flagVal >= 0 {
		return flagVal
	}
	return expandMaxOverlaps
}

// modeConfig bundles the output-shaping choices every group driver
// needs, independent of local-vs-networked execution.
type modeConfig struct {
	expand      bool
	afg         bool
	includeSelf bool
	lMin        int
	maxOverlaps int
}

// outputPath names this driver's overlap output file:
// "<input>-<rank>.ovl" by default, or "<input>-ovl-<rank>.afg" in AFG
// mode.
func outputPath(input string, rank int, afg bool) string {
	if afg {
		return fmt.Sprintf("%s-ovl-%05d.afg", input, rank)
	}
	return fmt.Sprintf("%s-%05d.ovl", input, rank)
}

// runLocal simulates numPeers peers in one process, partitions them
// into replica groups with internal/group, gives every group its own
// LocalTransport (groups share nothing, so their address spaces must
// not collide), and runs every group's driver concurrently.
func runLocal(input string, numPeers int, runID string, meta clusterconfig.RunMeta, cfg modeConfig) {
	log := logging.New(runID, 0, "driver")
	if numPeers < 1 {
		fatal(log, "startup", "peers must be >= 1")
	}

	capacity := uint64(1) << meta.ShardBits
	plan, err := group.New(numPeers, capacity, meta.LastUsedEdge)
	if err != nil {
		fatal(log, "partition replica groups", err.Error())
	}
	log.WithField("shards_per_replica", plan.ShardsPerReplica).WithField("replicas", plan.Replicas).Info("replica plan")

	image, err := loadEdgeImage(input)
	if err != nil {
		fatal(log, "load -edges", err.Error())
	}

	sortedRecords, err := loadSortedRecords(input)
	if err != nil {
		fatal(log, "load -sorted", err.Error())
	}

	err = plan.RunDrivers(func(groupID int) error {
		return runGroupLocal(input, groupID, plan, meta, cfg, image, capacity, sortedRecords, runID)
	})
	if err != nil {
		fatal(log, "run replica groups", err.Error())
	}
}

// runGroupLocal drives one replica group end-to-end inside the
// single-process simulation: it builds a fresh LocalTransport shared by
// only this group's G members, loads each member's shard slice, and
// streams this group's share of the sorted reads through the locator.
func runGroupLocal(input string, groupID int, plan *group.Plan, meta clusterconfig.RunMeta, cfg modeConfig, image []shardtable.Cell, capacity uint64, sortedRecords []reads.SortedRecord, runID string) error {
	g := plan.ShardsPerReplica
	lt := rpcproto.NewLocalTransport()
	peers := make([]*peer.Peer, g)
	for local := 0; local < g; local++ {
		p := peer.New(peer.Config{
			ID:        local,
			K:         meta.ShardBits,
			NumPeers:  g,
			Transport: lt,
			Log:       logging.New(runID, local, fmt.Sprintf("group%d", groupID)),
		})
		if err := p.LoadShard(shardSlice(image, local, capacity)); err != nil {
			return err
		}
		peers[local] = p
		lt.Register(local, p)
	}

	driver := peers[0]
	out, err := os.Create(outputPath(input, groupID, cfg.afg))
	if err != nil {
		return errs.New(errs.IoError, "open overlap output", err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	defer w.Flush()

	for pos, rec := range sortedRecords {
		if !plan.OwnsPosition(groupID, pos) {
			continue
		}
		if err := probeRead(driver, w, rec, cfg); err != nil {
			return err
		}
	}
	return w.Flush()
}

func shardSlice(image []shardtable.Cell, shardID int, capacity uint64) []shardtable.Cell {
	start := uint64(shardID) * capacity
	if start >= uint64(len(image)) {
		return nil
	}
	end := start + capacity
	if end > uint64(len(image)) {
		end = uint64(len(image))
	}
	return image[start:end]
}

// probeRead runs the suffix descent for one read, ranging its suffix
// length from L-1 down to the minimum overlap length and writing
// whatever matches it finds in the mode cfg selects.
func probeRead(driver *peer.Peer, w io.Writer, rec reads.SortedRecord, cfg modeConfig) error {
	seq := rec.Sequence
	L := len(seq)
	for l := L - 1; l >= cfg.lMin; l-- {
		suffix := seq[L-l:]
		offset := L - l
		res, err := overlap.Locate(driver, suffix, overlap.RootGlobal, rec.ReadID, offset)
		if err != nil {
			return err
		}
		switch res.State {
		case rpcproto.LocateDead:
			continue
		case rpcproto.LocateMatched:
			if err := emitMatch(driver, w, rec.ReadID, offset, res, cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitMatch writes whatever output a single matched descent produces:
// a leaf match is always a single concrete overlap; an interior-cell
// match is either deferred to a raw anchor pointer or expanded into
// every leaf beneath it, per cfg.expand.
func emitMatch(driver *peer.Peer, w io.Writer, sourceReadID uint64, offset int, res rpcproto.LocateResult, cfg modeConfig) error {
	if res.IsLeaf {
		if !cfg.includeSelf && res.LeafReadID == sourceReadID {
			return nil
		}
		return writeOne(w, rpcproto.OverlapRecord{SourceReadID: sourceReadID, TargetReadID: res.LeafReadID, Offset: offset}, cfg)
	}

	if !cfg.expand {
		return overlap.WriteAnchor(w, sourceReadID, offset, res.CellGlobal)
	}

	print, err := overlap.PrintOverlaps(driver, res.CellGlobal, sourceReadID, offset, 0, cfg.maxOverlaps)
	if err != nil {
		return err
	}
	for _, r := range print.Records {
		if !cfg.includeSelf && r.TargetReadID == r.SourceReadID {
			continue
		}
		if err := writeOne(w, r, cfg); err != nil {
			return err
		}
	}
	return nil
}

func writeOne(w io.Writer, rec rpcproto.OverlapRecord, cfg modeConfig) error {
	if cfg.afg {
		return overlap.WriteAFG(w, rec)
	}
	return overlap.WriteOverlap(w, rec)
}

func loadEdgeImage(input string) ([]shardtable.Cell, error) {
	f, err := os.Open(input + "-edges")
	if err != nil {
		return nil, errs.New(errs.IoError, "open -edges", err)
	}
	defer f.Close()
	return peer.LoadEdgeImage(bufio.NewReader(f))
}

func loadSortedRecords(input string) ([]reads.SortedRecord, error) {
	f, err := os.Open(input + "-sorted")
	if err != nil {
		return nil, errs.New(errs.IoError, "open -sorted", err)
	}
	defer f.Close()

	r := reads.NewSortedReader(bufio.NewReader(f))
	var out []reads.SortedRecord
	for {
		rec, err := r.Next()
		if err == nil {
			out = append(out, rec)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		return nil, err
	}
	return out, nil
}

// runNetworked makes this process one peer of a real overlap-phase
// cluster: it loads the same replica plan every peer computes
// identically from -meta, then, if assigned to a group, builds an
// HTTPTransport scoped to just that group's members (addressed by
// group-local id, since internal/overlap.Descender routes by shard id
// 0..G-1 within a single replica) before driving or serving.
func runNetworked(input, clusterPath string, peerID int, listenOverride string, runID string, meta clusterconfig.RunMeta, cfg modeConfig) {
	if peerID < 0 {
		fatal(nil, "startup", "-peer-id is required with -cluster")
	}
	top, err := clusterconfig.LoadTopology(clusterPath)
	if err != nil {
		fatal(nil, "load cluster file", err.Error())
	}

	capacity := uint64(1) << meta.ShardBits
	plan, err := group.New(top.NumPeers(), capacity, meta.LastUsedEdge)
	if err != nil {
		fatal(nil, "partition replica groups", err.Error())
	}
	assignment, err := plan.For(peerID)
	if err != nil {
		fatal(nil, "resolve assignment", err.Error())
	}

	log := logging.New(runID, peerID, string(assignment.Role))

	if assignment.Role == group.RoleIdle {
		log.Info("idle: cluster oversized for one replica grouping, nothing to do")
		return
	}

	listen := listenOverride
	if listen == "" {
		addr, err := top.AddrFor(peerID)
		if err != nil {
			fatal(log, "resolve listen address", err.Error())
		}
		listen = addr
	}

	groupAddrs := make(map[int]string, plan.ShardsPerReplica)
	for i := 0; i < top.NumPeers(); i++ {
		a, err := plan.For(i)
		if err != nil {
			fatal(log, "resolve peer assignment", err.Error())
		}
		if a.GroupID == assignment.GroupID && a.Role != group.RoleIdle {
			addr, err := top.AddrFor(i)
			if err != nil {
				fatal(log, "resolve peer address", err.Error())
			}
			groupAddrs[a.GroupLocal] = addr
		}
	}
	ht := rpcproto.NewHTTPTransport(groupAddrs)

	shard, err := loadShardFromDisk(input, assignment.GroupLocal, capacity)
	if err != nil {
		fatal(log, "load shard", err.Error())
	}

	p := peer.New(peer.Config{
		ID:        assignment.GroupLocal,
		K:         meta.ShardBits,
		NumPeers:  plan.ShardsPerReplica,
		Transport: ht,
		Log:       log,
	})
	if err := p.LoadShard(shard); err != nil {
		fatal(log, "load shard", err.Error())
	}

	srv := rpcproto.NewServer(p, log)
	httpSrv := &http.Server{Addr: listenAddrOf(listen), Handler: srv}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("err", err.Error()).Error("http server stopped")
		}
	}()

	if assignment.Role != group.RoleDriver {
		waitForExit(p)
		return
	}

	time.Sleep(200 * time.Millisecond)

	sortedRecords, err := loadSortedRecords(input)
	if err != nil {
		fatal(log, "load -sorted", err.Error())
	}

	out, err := os.Create(outputPath(input, assignment.GroupID, cfg.afg))
	if err != nil {
		fatal(log, "open overlap output", err.Error())
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	for pos, rec := range sortedRecords {
		if !plan.OwnsPosition(assignment.GroupID, pos) {
			continue
		}
		if err := probeRead(p, w, rec, cfg); err != nil {
			fatal(log, "probe read", err.Error())
		}
	}
	if err := w.Flush(); err != nil {
		fatal(log, "flush overlap output", err.Error())
	}
	log.Info("overlap pass complete")

	for local := 1; local < plan.ShardsPerReplica; local++ {
		if _, err := ht.Call(local, rpcproto.Request{Tag: rpcproto.TagExit, Exit: &rpcproto.ExitArgs{Reason: "overlap pass complete"}}); err != nil {
			log.WithField("peer", local).WithField("err", err.Error()).Warn("EXIT call failed")
		}
	}
}

// loadShardFromDisk reads just one shard's worth of cells directly out
// of -edges at the right byte offset, rather than loading the whole
// trie image, the natural per-peer counterpart to runLocal's one-pass
// load of the full file it then slices in memory.
func loadShardFromDisk(input string, shardID int, capacity uint64) ([]shardtable.Cell, error) {
	f, err := os.Open(input + "-edges")
	if err != nil {
		return nil, errs.New(errs.IoError, "open -edges", err)
	}
	defer f.Close()

	const cellBytes = 40
	offset := int64(shardID) * int64(capacity) * cellBytes
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, errs.New(errs.IoError, "seek -edges", err)
	}
	limited := io.LimitReader(f, int64(capacity)*cellBytes)
	return peer.LoadEdgeImage(bufio.NewReader(limited))
}

func listenAddrOf(addr string) string {
	const prefix = "http://"
	if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
		return addr[len(prefix):]
	}
	return addr
}

func waitForExit(p *peer.Peer) {
	for !p.Exiting() {
		time.Sleep(50 * time.Millisecond)
	}
}

func fatal(log *logrus.Entry, op, cause string) {
	e := errs.New(errs.IoError, op, fmt.Errorf("%s", cause))
	if log != nil {
		log.WithField("op", op).Error(e.Error())
	} else {
		fmt.Fprintln(os.Stderr, "findoverlaps: "+e.Error())
	}
	os.Exit(1)
}
