package rpcproto

import (
	"fmt"
	"sync"
)

// LocalTransport dispatches Calls by direct, in-process invocation of
// the target peer's Handler, guarded by a per-peer mutex so that at
// most one request is ever in flight per receiver, the same
// single-outstanding-request discipline a networked transport must
// enforce, serviced here by direct recursion.
//
// All peers in a LocalTransport share one address space, which is the
// intended shape for tests and for running a whole cluster inside one
// process; internal/peer's state is already structured as per-peer
// fields rather than package globals for exactly this reason.
type LocalTransport struct {
	mu    sync.Mutex // protects the registry itself, not individual peers
	peers map[int]Handler
	locks map[int]*sync.Mutex
}

// NewLocalTransport returns an empty transport; peers register
// themselves with Register before any Call can reach them.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		peers: make(map[int]Handler),
		locks: make(map[int]*sync.Mutex),
	}
}

// Register associates a peer id with the Handler that serves it. Not
// safe to call concurrently with Call for the same peerID during
// registration, but is expected to happen once at cluster startup.
func (lt *LocalTransport) Register(peerID int, h Handler) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.peers[peerID] = h
	lt.locks[peerID] = &sync.Mutex{}
}

// Call implements Transport by looking up the target peer and invoking
// its Handler directly, after acquiring that peer's single-flight lock.
func (lt *LocalTransport) Call(peerID int, req Request) (Response, error) {
	lt.mu.Lock()
	h, ok := lt.peers[peerID]
	lock := lt.locks[peerID]
	lt.mu.Unlock()
	if !ok {
		return Response{}, fmt.Errorf("rpcproto: no local peer registered with id %d", peerID)
	}
	lock.Lock()
	defer lock.Unlock()
	return h.Handle(req), nil
}
