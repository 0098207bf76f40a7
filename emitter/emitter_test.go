package emitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnFiresEveryTime(t *testing.T) {
	e := New()
	var calls []any
	e.On("message", func(payload any) { calls = append(calls, payload) })

	e.Emit("message", "first")
	e.Emit("message", "second")

	assert.Equal(t, []any{"first", "second"}, calls)
}

func TestOnceFiresOnlyOnce(t *testing.T) {
	e := New()
	count := 0
	e.Once("connected", func(any) { count++ })

	e.Emit("connected", nil)
	e.Emit("connected", nil)

	assert.Equal(t, 1, count)
}

func TestOffRemovesHandler(t *testing.T) {
	e := New()
	count := 0
	h := e.On("message", func(any) { count++ })
	e.Off("message", h)

	e.Emit("message", nil)

	assert.Equal(t, 0, count)
}

func TestOffUnknownHandleIsNoop(t *testing.T) {
	e := New()
	assert.NotPanics(t, func() { e.Off("message", Handle(999)) })
}

func TestEmitOrderIsRegistrationOrder(t *testing.T) {
	e := New()
	var order []int
	e.On("evt", func(any) { order = append(order, 1) })
	e.On("evt", func(any) { order = append(order, 2) })
	e.On("evt", func(any) { order = append(order, 3) })

	e.Emit("evt", nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

// A handler that registers a new handler for the same event mid-emit must
// not affect the current Emit call, since Emit snapshots its handler list
// up front.
func TestHandlerRegisteringDuringEmitIsNotCalledThisRound(t *testing.T) {
	e := New()
	secondCalled := false
	e.On("evt", func(any) {
		e.On("evt", func(any) { secondCalled = true })
	})

	e.Emit("evt", nil)
	assert.False(t, secondCalled)

	e.Emit("evt", nil)
	assert.True(t, secondCalled)
}

func TestEmitUnknownEventIsNoop(t *testing.T) {
	e := New()
	assert.NotPanics(t, func() { e.Emit("nothing-registered", "x") })
}
