package wschat

import (
	"sync"

	"go.uber.org/zap"
)

const (
	EventOpen             = "open"
	EventClose            = "close"
	EventError            = "error"
	EventConnectionError  = "connectionError"
	EventMessage          = "message"
	EventSysMessage       = "sysMessage"
	EventUserStatusChange = "userStatusChange"
	EventJoinRoom         = "joinRoom"
	EventLeaveRoom        = "leaveRoom"
	EventRoomCreated      = "roomCreated"
	EventRoomRemoved      = "roomRemoved"
)

// Event is delivered to subscribers for every server-pushed
// notification. Fields other than Name are set depending on the event:
// Room is nil when no registered room matches the target.
type Event struct {
	Name    string
	Room    *Room
	Target  string
	Text    string
	Message *Message
	Status  *StatusUpdate
	Err     error
}

// Handler receives events. Handlers run synchronously on the dispatch
// goroutine and must not block; issue follow-up requests from a
// separate goroutine.
type Handler func(Event)

type subscription struct {
	id   int
	fn   Handler
	once bool
}

// emitter is a name-keyed subscriber registry. Go functions are not
// comparable, so On and Once return an integer id for use with Off.
type emitter struct {
	logger *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[string][]subscription
}

func newEmitter(logger *zap.Logger) *emitter {
	return &emitter{
		logger: logger,
		subs:   make(map[string][]subscription),
	}
}

func (e *emitter) On(name string, fn Handler) int {
	return e.add(name, fn, false)
}

// Once subscribes for a single delivery; the subscription is removed
// before the handler runs.
func (e *emitter) Once(name string, fn Handler) int {
	return e.add(name, fn, true)
}

func (e *emitter) add(name string, fn Handler, once bool) int {
	if fn == nil {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.subs[name] = append(e.subs[name], subscription{id: e.nextID, fn: fn, once: once})
	return e.nextID
}

// Off removes the subscription with the given id from name.
func (e *emitter) Off(name string, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.subs[name]
	for i, sub := range list {
		if sub.id == id {
			e.subs[name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// OffAll removes every subscription for name.
func (e *emitter) OffAll(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, name)
}

// Reset drops every subscriber for every event. Used on teardown.
func (e *emitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = make(map[string][]subscription)
}

// Emit invokes all current subscribers for the event's name in
// subscription order. Iteration works over a stable snapshot, so a
// handler unsubscribing itself mid-emission is safe, and a panicking
// handler does not prevent later handlers from running.
func (e *emitter) Emit(ev Event) {
	e.mu.Lock()
	list := e.subs[ev.Name]
	snapshot := make([]subscription, len(list))
	copy(snapshot, list)

	remaining := list[:0:0]
	for _, sub := range list {
		if !sub.once {
			remaining = append(remaining, sub)
		}
	}
	if len(remaining) == 0 {
		delete(e.subs, ev.Name)
	} else {
		e.subs[ev.Name] = remaining
	}
	e.mu.Unlock()

	for _, sub := range snapshot {
		e.invoke(sub, ev)
	}
}

func (e *emitter) invoke(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				zap.String("event", ev.Name),
				zap.Any("panic", r))
		}
	}()
	sub.fn(ev)
}
