// Package emitter implements a minimal named-event dispatcher: register
// handlers under a name, fire them in registration order, optionally once.
package emitter

import "sync"

// Handle identifies a single registered handler for later removal.
type Handle uint64

type registration struct {
	handle Handle
	fn     func(any)
	once   bool
}

// Emitter is safe for concurrent use. Emit takes a snapshot of the
// registered handlers before invoking any of them, so a handler that
// registers or removes another handler mid-emit never races the dispatch
// loop it's part of.
type Emitter struct {
	mu       sync.Mutex
	handlers map[string][]registration
	nextID   Handle
}

// New constructs an empty Emitter.
func New() *Emitter {
	return &Emitter{handlers: make(map[string][]registration)}
}

// On registers fn to run every time event fires, until removed with Off.
func (e *Emitter) On(event string, fn func(any)) Handle {
	return e.add(event, fn, false)
}

// Once registers fn to run on the next occurrence of event only.
func (e *Emitter) Once(event string, fn func(any)) Handle {
	return e.add(event, fn, true)
}

func (e *Emitter) add(event string, fn func(any), once bool) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	h := e.nextID
	e.handlers[event] = append(e.handlers[event], registration{handle: h, fn: fn, once: once})
	return h
}

// Off removes a previously registered handler by its Handle. It is a no-op
// if the handle is unknown (already removed, or never existed).
func (e *Emitter) Off(event string, h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	regs := e.handlers[event]
	for i, r := range regs {
		if r.handle == h {
			e.handlers[event] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// Emit invokes every handler registered for event, in registration order,
// with payload. Once-handlers are removed after this call.
func (e *Emitter) Emit(event string, payload any) {
	e.mu.Lock()
	regs := append([]registration(nil), e.handlers[event]...)
	var remaining []registration
	for _, r := range e.handlers[event] {
		if !r.once {
			remaining = append(remaining, r)
		}
	}
	e.handlers[event] = remaining
	e.mu.Unlock()

	for _, r := range regs {
		r.fn(payload)
	}
}
