package wschat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestEmitterInvokesInSubscriptionOrder(t *testing.T) {
	e := newEmitter(zaptest.NewLogger(t))

	var got []int
	e.On("ev", func(Event) { got = append(got, 1) })
	e.On("ev", func(Event) { got = append(got, 2) })
	e.On("other", func(Event) { got = append(got, 99) })

	e.Emit(Event{Name: "ev"})
	assert.Equal(t, []int{1, 2}, got)
}

func TestEmitterOnceRemovedBeforeDelegating(t *testing.T) {
	e := newEmitter(zaptest.NewLogger(t))

	calls := 0
	e.Once("ev", func(Event) {
		calls++
		// Re-emitting from inside the handler must not recurse into
		// this subscription; it was removed before delegation.
		if calls == 1 {
			e.Emit(Event{Name: "ev"})
		}
	})

	e.Emit(Event{Name: "ev"})
	e.Emit(Event{Name: "ev"})
	assert.Equal(t, 1, calls)
}

func TestEmitterOffRemovesOneSubscriber(t *testing.T) {
	e := newEmitter(zaptest.NewLogger(t))

	var got []string
	id := e.On("ev", func(Event) { got = append(got, "a") })
	e.On("ev", func(Event) { got = append(got, "b") })

	e.Off("ev", id)
	e.Emit(Event{Name: "ev"})
	assert.Equal(t, []string{"b"}, got)
}

func TestEmitterOffAllAndReset(t *testing.T) {
	e := newEmitter(zaptest.NewLogger(t))

	calls := 0
	e.On("a", func(Event) { calls++ })
	e.On("b", func(Event) { calls++ })

	e.OffAll("a")
	e.Emit(Event{Name: "a"})
	e.Emit(Event{Name: "b"})
	assert.Equal(t, 1, calls)

	e.Reset()
	e.Emit(Event{Name: "b"})
	assert.Equal(t, 1, calls)
}

func TestEmitterPanicDoesNotStopEmission(t *testing.T) {
	e := newEmitter(zaptest.NewLogger(t))

	ran := false
	e.On("ev", func(Event) { panic("handler bug") })
	e.On("ev", func(Event) { ran = true })

	e.Emit(Event{Name: "ev"})
	assert.True(t, ran)
}

func TestEmitterSelfUnsubscribeDuringEmission(t *testing.T) {
	e := newEmitter(zaptest.NewLogger(t))

	var got []string
	var firstID int
	firstID = e.On("ev", func(Event) {
		got = append(got, "first")
		e.Off("ev", firstID)
	})
	e.On("ev", func(Event) { got = append(got, "second") })

	e.Emit(Event{Name: "ev"})
	e.Emit(Event{Name: "ev"})
	assert.Equal(t, []string{"first", "second", "second"}, got)
}
