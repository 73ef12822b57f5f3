// Package lock provides the reentrant mutex the entity store uses to guard
// the three-level library/document/chunk hierarchy and its index registry.
package lock

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Reentrant is a mutex that may be locked multiple times by the same
// goroutine without deadlocking. A service-level operation can call a
// lower-level store operation under the same logical transaction as long as
// both acquire the same Reentrant.
//
// Go intentionally has no public goroutine-id API; the owner is recovered by
// parsing the leading "goroutine N [...]" line out of a one-frame stack
// trace. This is the standard low-tech way to do it and is only ever on the
// lock/unlock path, not the hot search path.
type Reentrant struct {
	mu      sync.Mutex
	owner   uint64
	held    bool
	count   int
	waiters sync.Mutex
}

// Lock acquires the mutex. If the calling goroutine already holds it, the
// recursion counter is incremented instead of blocking.
func (r *Reentrant) Lock() {
	id := goroutineID()

	r.waiters.Lock()
	if r.held && r.owner == id {
		r.count++
		r.waiters.Unlock()
		return
	}
	r.waiters.Unlock()

	r.mu.Lock()
	r.waiters.Lock()
	r.held = true
	r.owner = id
	r.count = 1
	r.waiters.Unlock()
}

// Unlock releases one level of recursion. The underlying mutex is only
// released once the outermost Lock call's matching Unlock runs.
func (r *Reentrant) Unlock() {
	id := goroutineID()

	r.waiters.Lock()
	if !r.held || r.owner != id {
		r.waiters.Unlock()
		panic("lock: Unlock called by a goroutine that does not hold the lock")
	}
	r.count--
	if r.count > 0 {
		r.waiters.Unlock()
		return
	}
	r.held = false
	r.owner = 0
	r.waiters.Unlock()
	r.mu.Unlock()
}

// HeldByCaller reports whether the calling goroutine currently holds the
// lock. Used by internal helpers that want to assert their precondition.
func (r *Reentrant) HeldByCaller() bool {
	r.waiters.Lock()
	defer r.waiters.Unlock()
	return r.held && r.owner == goroutineID()
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if idx := bytes.Index(b, []byte(prefix)); idx >= 0 {
		b = b[idx+len(prefix):]
	}
	if sp := bytes.IndexByte(b, ' '); sp >= 0 {
		b = b[:sp]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
