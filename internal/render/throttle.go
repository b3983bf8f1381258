// Package render paces streaming output updates so that rapidly arriving
// content is coalesced into periodic edits of a single chat message.
package render

import (
	"sync"
	"time"
)

// Func applies a rendered frame: it overwrites the message identified by
// messageID with content.
type Func func(messageID, content string) error

// Throttle coalesces a burst of Render calls into at most one downstream
// call per interval. The first call inside an open window fires
// immediately; later calls within the window replace the pending frame,
// which is flushed on a trailing edge when the window closes. The last
// frame handed to Render is therefore always delivered.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	fn       Func
	onError  func(error)

	windowOpen bool
	timer      *time.Timer
	hasPending bool
	pendingID  string
	pendingAt  string
}

// NewThrottle creates a throttle that invokes fn at most once per interval.
// onError receives failures from trailing-edge flushes; it may be nil.
func NewThrottle(interval time.Duration, fn Func, onError func(error)) *Throttle {
	return &Throttle{
		interval: interval,
		fn:       fn,
		onError:  onError,
	}
}

// Render requests that the message be updated to content. When the pacing
// window is closed the call is forwarded synchronously and its error is
// returned. When the window is open the frame is stored as pending and nil
// is returned; the pending frame is flushed when the window elapses.
func (t *Throttle) Render(messageID, content string) error {
	t.mu.Lock()
	if t.windowOpen {
		t.hasPending = true
		t.pendingID = messageID
		t.pendingAt = content
		t.mu.Unlock()
		return nil
	}
	t.openWindowLocked()
	t.mu.Unlock()

	return t.fn(messageID, content)
}

// Cancel drops any pending frame and closes the pacing window. A frame
// already handed to the render function is unaffected.
func (t *Throttle) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hasPending = false
	t.pendingID = ""
	t.pendingAt = ""
	t.windowOpen = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttle) openWindowLocked() {
	t.windowOpen = true
	t.timer = time.AfterFunc(t.interval, t.flush)
}

// flush runs on window expiry: it delivers the pending frame if one
// accumulated and opens a fresh window, otherwise it closes the window.
func (t *Throttle) flush() {
	t.mu.Lock()
	if !t.windowOpen {
		t.mu.Unlock()
		return
	}
	if !t.hasPending {
		t.windowOpen = false
		t.timer = nil
		t.mu.Unlock()
		return
	}
	id, content := t.pendingID, t.pendingAt
	t.hasPending = false
	t.pendingID = ""
	t.pendingAt = ""
	t.openWindowLocked()
	t.mu.Unlock()

	if err := t.fn(id, content); err != nil && t.onError != nil {
		t.onError(err)
	}
}
