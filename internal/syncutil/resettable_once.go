// Package syncutil provides thread-safe synchronization primitives.
//
// It provides a resettable Once that can be safely reset for reconnection
// scenarios, unlike sync.Once which cannot be reset while other goroutines
// might be calling Do().
package syncutil

import (
	"sync"
	"sync/atomic"
)

// ResettableOnce is like sync.Once but can be safely reset.
//
// This is useful for connection lifecycles where close/teardown must run
// exactly once per connection cycle but the cycle itself may restart.
//
// ResettableOnce is safe for concurrent use.
type ResettableOnce struct {
	done uint32
	m    sync.Mutex
}

// Do calls the function f if and only if Do has not been called
// since the last Reset (or ever, if Reset was never called).
//
// If multiple goroutines call Do simultaneously, only one will execute f.
// The other calls block until f returns, then return without calling f.
func (o *ResettableOnce) Do(f func()) {
	if atomic.LoadUint32(&o.done) == 1 {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.done == 0 {
		defer atomic.StoreUint32(&o.done, 1)
		f()
	}
}

// DoWithError calls the function f if and only if Do has not been called
// since the last Reset. Returns the error from f.
//
// If f returns an error, the Once is NOT marked as done, allowing retry.
func (o *ResettableOnce) DoWithError(f func() error) error {
	if atomic.LoadUint32(&o.done) == 1 {
		return nil
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.done == 0 {
		if err := f(); err != nil {
			return err
		}
		atomic.StoreUint32(&o.done, 1)
	}

	return nil
}

// Reset allows Do to be called again.
//
// This is safe to call concurrently with Do. If a Do is in progress,
// Reset will block until it completes, then reset the state.
func (o *ResettableOnce) Reset() {
	o.m.Lock()
	defer o.m.Unlock()
	atomic.StoreUint32(&o.done, 0)
}

// Done returns true if Do has been called and completed successfully
// since the last Reset.
func (o *ResettableOnce) Done() bool {
	return atomic.LoadUint32(&o.done) == 1
}
