package pipeline

import "sync/atomic"

// atomicBool is a tiny cancellation flag shared across worker-pool
// goroutines without a mutex.
type atomicBool struct {
	v atomic.Bool
}

func (b *atomicBool) set(val bool) { b.v.Store(val) }
func (b *atomicBool) get() bool    { return b.v.Load() }
