package generate

import "sync"

// State holds the current generation result. A generation begins by taking a
// sequence number and may only publish its result while that number is still
// the newest; results of superseded generations are dropped.
type State struct {
	mu sync.RWMutex

	// latest is the last sequence number handed out by Begin
	latest uint64

	current *Result
	dropped int
}

// NewState returns an empty state
func NewState() *State {
	return &State{}
}

// Begin registers a new generation and supersedes every earlier one
func (s *State) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest++
	return s.latest
}

// Commit publishes r if seq is still the newest generation and reports
// whether it was accepted
func (s *State) Commit(seq uint64, r *Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.latest {
		s.dropped++
		return false
	}
	s.current = r
	return true
}

// Replace swaps the current result for one derived from it, such as a
// rebuild for the address toggle. It fails when no result is present.
func (s *State) Replace(update func(*Result) *Result) (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, false
	}
	s.current = update(s.current)
	return s.current, true
}

// Current returns the last accepted result, nil before the first success
func (s *State) Current() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Dropped returns how many results arrived after being superseded
func (s *State) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}
