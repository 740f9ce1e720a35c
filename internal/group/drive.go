package group

import "golang.org/x/sync/errgroup"

// RunDrivers invokes driverFor(groupID) once per replica group,
// concurrently. Replica groups share nothing (each holds its own full
// trie copy and processes a disjoint input slice), so errgroup.Group
// is all the coordination they need: a failure in one aborts the whole
// run.
func (p *Plan) RunDrivers(driverFor func(groupID int) error) error {
	var eg errgroup.Group
	for g := 0; g < p.Replicas; g++ {
		g := g
		eg.Go(func() error { return driverFor(g) })
	}
	return eg.Wait()
}
