package signals

import "sync"

// Mask keeps the reaper out while held. Go delivers signals to a channel
// rather than interrupting a thread, so blocking the child-reap signal means
// holding the lock the reaper takes before it drains children.
type Mask struct {
	mu sync.Mutex
}

// Block holds the mask until the returned release func is called. Release is
// idempotent, so it can be deferred and also called early.
func (m *Mask) Block() (release func()) {
	m.mu.Lock()
	var once sync.Once
	return func() { once.Do(m.mu.Unlock) }
}
