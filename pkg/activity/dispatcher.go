package activity

import (
	"sync"
)

const serialDispatcherBuffer = 64

// Dispatcher runs functions in an execution context, for example on the UI thread.
type Dispatcher interface {
	Dispatch(fn func())
}

// InlineDispatcher runs each function immediately in the caller goroutine.
type InlineDispatcher struct{}

func (InlineDispatcher) Dispatch(fn func()) {
	fn()
}

// SerialDispatcher runs functions one by one, in the order of dispatching, in its own goroutine.
type SerialDispatcher struct {
	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once
	lock      sync.RWMutex
	closed    bool
}

func NewSerialDispatcher() *SerialDispatcher {
	d := &SerialDispatcher{queue: make(chan func(), serialDispatcherBuffer), done: make(chan struct{})}
	go d.run()
	return d
}

// Dispatch enqueues the function, it is ignored if the dispatcher is closed.
func (d *SerialDispatcher) Dispatch(fn func()) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if d.closed {
		return
	}
	d.queue <- fn
}

// Close runs all queued functions and stops the dispatcher.
func (d *SerialDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.lock.Lock()
		d.closed = true
		close(d.queue)
		d.lock.Unlock()
	})
	<-d.done
}

func (d *SerialDispatcher) run() {
	defer close(d.done)
	for fn := range d.queue {
		fn()
	}
}
