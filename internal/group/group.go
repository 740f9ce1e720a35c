// Package group partitions the overlap phase's peer pool into
// contiguous replica groups, each holding one full copy of the trie,
// and assigns disjoint slices of the input to each group.
package group

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/dreamware/readtrie/internal/errs"
)

// Role is a peer's function within its replica group.
type Role string

const (
	// RoleDriver streams the sorted-unique reads and issues LOCATE/PRINT
	// calls; exactly one per group (group-local peer 0).
	RoleDriver Role = "driver"
	// RoleServer answers LOCATE/PRINT/READ_CELL/WRITE_CELL calls over its
	// shard; every non-driver member of a group.
	RoleServer Role = "server"
	// RoleIdle means this peer is surplus beyond R*G and takes no part;
	// it is released at startup.
	RoleIdle Role = "idle"
)

// Assignment is one peer's place in the plan.
type Assignment struct {
	PeerID     int
	GroupID    int // meaningless (0) when Role == RoleIdle
	GroupLocal int // this peer's index within its group, 0 == driver
	Role       Role
}

// Plan is the computed partition of a peer pool for one overlap run.
type Plan struct {
	// ShardsPerReplica is G: peers needed for one full trie replica.
	ShardsPerReplica int
	// Replicas is R: how many independent replica groups exist.
	Replicas int
	// Assignments is indexed by peer id.
	Assignments []Assignment
}

// New computes the replica-group plan for numPeers peers holding a
// trie whose highest-numbered allocated cell is lastUsedEdge, sharded
// at shardCapacity cells per shard.
//
// It refuses to start (Oversubscribed) when there aren't even enough
// peers for one full replica.
func New(numPeers int, shardCapacity uint64, lastUsedEdge uint64) (*Plan, error) {
	if numPeers <= 0 {
		return nil, errors.New("group: numPeers must be positive")
	}
	if shardCapacity == 0 {
		return nil, errors.New("group: shardCapacity must be positive")
	}

	g := ShardsPerReplica(shardCapacity, lastUsedEdge)

	if numPeers < g {
		op := fmt.Sprintf("group: cluster too small for one replica: have %d peers, need %d (G)", numPeers, g)
		return nil, errs.New(errs.Oversubscribed, op, nil)
	}

	r := numPeers / g
	assignments := make([]Assignment, numPeers)
	for i := 0; i < numPeers; i++ {
		if i < r*g {
			groupID := i / g
			local := i % g
			role := RoleServer
			if local == 0 {
				role = RoleDriver
			}
			assignments[i] = Assignment{PeerID: i, GroupID: groupID, GroupLocal: local, Role: role}
		} else {
			assignments[i] = Assignment{PeerID: i, Role: RoleIdle}
		}
	}

	return &Plan{ShardsPerReplica: g, Replicas: r, Assignments: assignments}, nil
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// ShardsPerReplica computes G, the number of peers needed to hold one
// full trie replica: ceil(total_cells / shardCapacity), floored at 1.
// Exported so a driver can size its peer pool before it knows how many
// physical peers are available.
func ShardsPerReplica(shardCapacity uint64, lastUsedEdge uint64) int {
	totalCells := lastUsedEdge + 1
	g := int(ceilDiv(totalCells, shardCapacity))
	if g < 1 {
		g = 1
	}
	return g
}

// For returns the assignment for peerID.
func (p *Plan) For(peerID int) (Assignment, error) {
	if peerID < 0 || peerID >= len(p.Assignments) {
		return Assignment{}, errors.Errorf("group: peer %d out of range", peerID)
	}
	return p.Assignments[peerID], nil
}

// OwnsPosition reports whether the group with the given id is
// responsible for the input read at the given zero-based sequential
// position: group g owns exactly the positions with position mod R == g.
func (p *Plan) OwnsPosition(groupID int, position int) bool {
	if p.Replicas == 0 {
		return false
	}
	return position%p.Replicas == groupID
}
