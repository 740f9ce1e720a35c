package group

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanOneReplicaExactFit(t *testing.T) {
	// G=4 peers needed for one replica, 4 peers available => R=1, no idle.
	p, err := New(4, 1024, 4095)
	require.NoError(t, err)
	require.Equal(t, 4, p.ShardsPerReplica)
	require.Equal(t, 1, p.Replicas)

	a0, err := p.For(0)
	require.NoError(t, err)
	require.Equal(t, RoleDriver, a0.Role)
	require.Equal(t, 0, a0.GroupID)

	a1, err := p.For(1)
	require.NoError(t, err)
	require.Equal(t, RoleServer, a1.Role)
}

func TestPlanTwoReplicas(t *testing.T) {
	// G=2, 4 peers => R=2.
	p, err := New(4, 1024, 2047)
	require.NoError(t, err)
	require.Equal(t, 2, p.ShardsPerReplica)
	require.Equal(t, 2, p.Replicas)

	a2, err := p.For(2)
	require.NoError(t, err)
	require.Equal(t, 1, a2.GroupID)
	require.Equal(t, RoleDriver, a2.Role)
}

func TestPlanReleasesSurplusPeers(t *testing.T) {
	// G=2, 5 peers => R=2, peer 4 is surplus/idle.
	p, err := New(5, 1024, 2047)
	require.NoError(t, err)
	require.Equal(t, 2, p.Replicas)

	a4, err := p.For(4)
	require.NoError(t, err)
	require.Equal(t, RoleIdle, a4.Role)
}

func TestPlanOversubscribed(t *testing.T) {
	_, err := New(2, 1024, 4095) // needs G=4, only 2 peers
	require.Error(t, err)
}

func TestOwnsPositionPartitionsDisjointly(t *testing.T) {
	p, err := New(4, 1024, 2047) // R=2
	require.NoError(t, err)

	var g0, g1 []int
	for pos := 0; pos < 10; pos++ {
		if p.OwnsPosition(0, pos) {
			g0 = append(g0, pos)
		}
		if p.OwnsPosition(1, pos) {
			g1 = append(g1, pos)
		}
	}
	require.Equal(t, []int{0, 2, 4, 6, 8}, g0)
	require.Equal(t, []int{1, 3, 5, 7, 9}, g1)
}

func TestRunDriversConcurrency(t *testing.T) {
	p, err := New(4, 1024, 2047) // R=2
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []int
	var calls int32

	err = p.RunDrivers(func(groupID int) error {
		atomic.AddInt32(&calls, 1)
		mu.Lock()
		seen = append(seen, groupID)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int32(2), calls)
	require.ElementsMatch(t, []int{0, 1}, seen)
}
