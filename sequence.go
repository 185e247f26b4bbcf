package wschat

import "sync"

// maxSequenceID keeps correlation ids inside JavaScript's safe integer
// range, matching the server's id arithmetic.
const maxSequenceID = 1<<53 - 1

type result struct {
	payload any
	err     error
}

// sequencer hands out correlation ids and tracks the in-flight request
// each one belongs to. An entry is completed exactly once; the
// lookup-then-remove happens under the table lock.
type sequencer struct {
	mu      sync.Mutex
	next    int64
	pending map[int64]chan result
}

func newSequencer() *sequencer {
	return &sequencer{pending: make(map[int64]chan result)}
}

// nextIDLocked advances the counter, wrapping back to 1 past the safe
// integer ceiling. 0 is reserved to mean "uncorrelated" and ids that
// are still pending are never reissued.
func (s *sequencer) nextIDLocked() int64 {
	for {
		s.next++
		if s.next > maxSequenceID {
			s.next = 1
		}
		if _, busy := s.pending[s.next]; !busy {
			return s.next
		}
	}
}

// createPending allocates a fresh id together with a one-shot future
// for its reply. The channel is buffered so a late completion never
// blocks dispatch, even if the caller already gave up waiting.
func (s *sequencer) createPending() (<-chan result, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextIDLocked()
	ch := make(chan result, 1)
	s.pending[id] = ch
	return ch, id
}

// complete resolves or rejects the pending entry for id and removes it.
// It reports false when no such entry exists, in which case the caller
// treats the packet as unsolicited.
func (s *sequencer) complete(id int64, payload any, err error) bool {
	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	ch <- result{payload: payload, err: err}
	return true
}

// clear abandons every pending request, failing each exactly once.
func (s *sequencer) clear(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[int64]chan result)
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: err}
	}
}
