// Package activity signals network activity to a user interface.
//
// The Tracker counts in-flight transport attempts. The Indicator is switched on
// when the first attempt starts and switched off when the last attempt ends.
// The Indicator is always called through a Dispatcher, which represents the UI execution context.
package activity

import (
	"sync"
)

// Indicator is a network activity indicator, for example a spinner in the status bar.
type Indicator interface {
	SetNetworkActivity(visible bool)
}

// IndicatorFunc adapts an ordinary function to the Indicator interface.
type IndicatorFunc func(visible bool)

func (f IndicatorFunc) SetNetworkActivity(visible bool) {
	f(visible)
}

// Tracker counts in-flight attempts and toggles the Indicator.
type Tracker struct {
	indicator  Indicator
	dispatcher Dispatcher
	lock       sync.Mutex
	inFlight   int
	// dispatchLock keeps edges in order, it is acquired before lock is released.
	dispatchLock sync.Mutex
}

func NewTracker(indicator Indicator, dispatcher Dispatcher) *Tracker {
	if indicator == nil {
		panic("indicator cannot be nil")
	}
	if dispatcher == nil {
		dispatcher = InlineDispatcher{}
	}
	return &Tracker{indicator: indicator, dispatcher: dispatcher}
}

// Begin marks start of an attempt, the returned function marks its end.
// The end function can be called multiple times, only the first call counts.
func (t *Tracker) Begin() (end func()) {
	t.lock.Lock()
	t.inFlight++
	t.toggle(t.inFlight == 1, true)

	once := &sync.Once{}
	return func() {
		once.Do(t.end)
	}
}

// InFlight returns number of attempts in progress.
func (t *Tracker) InFlight() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.inFlight
}

func (t *Tracker) end() {
	t.lock.Lock()
	t.inFlight--
	t.toggle(t.inFlight == 0, false)
}

// toggle releases the counter lock and dispatches the edge, if any.
// The Indicator is called without the counter lock, so it can read InFlight.
func (t *Tracker) toggle(edge, visible bool) {
	if !edge {
		t.lock.Unlock()
		return
	}
	t.dispatchLock.Lock()
	t.lock.Unlock()
	defer t.dispatchLock.Unlock()
	t.dispatcher.Dispatch(func() { t.indicator.SetNetworkActivity(visible) })
}
