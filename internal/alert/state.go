package alert

import "sync"

// State remembers, per kind, the last period key an alert was sent for. It
// lives for the life of the process and is safe for concurrent use.
type State struct {
	mu   sync.Mutex
	last map[Kind]string
}

func NewState() *State {
	return &State{last: make(map[Kind]string)}
}

// Last returns the stored key for k, if any.
func (s *State) Last(k Kind) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.last[k]
	return key, ok
}

// Claim records key for k and reports true, unless key is already recorded
// for k, in which case it reports false and changes nothing.
func (s *State) Claim(k Kind, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.last[k]; ok && prev == key {
		return false
	}
	s.last[k] = key
	return true
}

// Snapshot copies the stored keys.
func (s *State) Snapshot() map[Kind]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Kind]string, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}
