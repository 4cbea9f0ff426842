package shell

import "sync"

// raceCell is a first-writer-wins settlement point for the thumbnail
// capture race: the engine snapshot and the timeout each try to settle it,
// exactly one succeeds, and the loser's result is discarded. Discarding is
// the whole cancellation story — the underlying engine operation is never
// aborted, its late result just has nowhere to land.
type raceCell struct {
	mu      sync.Mutex
	settled bool
}

// settle reports whether the caller won the race. At most one caller ever
// gets true.
func (r *raceCell) settle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled {
		return false
	}
	r.settled = true
	return true
}
