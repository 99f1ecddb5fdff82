package crawler

import "sync/atomic"

// Guard admits at most one crawl at a time within this process. It does not
// coordinate across processes or hosts.
type Guard struct {
	running atomic.Bool
}

func NewGuard() *Guard {
	return &Guard{}
}

// TryStart marks a run as active and reports true, or reports false and
// changes nothing when a run is already active.
func (g *Guard) TryStart() bool {
	return g.running.CompareAndSwap(false, true)
}

// Finish clears the running flag whether or not it was set.
func (g *Guard) Finish() {
	g.running.Store(false)
}

func (g *Guard) Running() bool {
	return g.running.Load()
}
