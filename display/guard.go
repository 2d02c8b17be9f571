package display

import "sync"

// Guard serializes every mutation of the panel. Do must not be called from
// inside fn; panel callbacks run after the guard is released.
type Guard struct {
	mu sync.Mutex
}

// Do runs fn while holding the guard. The guard is released on every exit
// path, including a panic in fn.
func (g *Guard) Do(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}
