package notify

import "sync"

// StatusSink remembers the latest positions snapshot and per-kind counts
// for the status endpoints.
type StatusSink struct {
	mu       sync.RWMutex
	snapshot *PositionsSnapshot
	eod      *EODPrices
	counts   map[Kind]int
}

func NewStatusSink() *StatusSink {
	return &StatusSink{counts: make(map[Kind]int)}
}

func (s *StatusSink) Handle(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[n.Kind()]++
	switch v := n.(type) {
	case PositionsSnapshot:
		s.snapshot = &v
	case EODPrices:
		s.eod = &v
	}
}

// Snapshot returns the most recent positions snapshot, if any.
func (s *StatusSink) Snapshot() (PositionsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return PositionsSnapshot{}, false
	}
	return *s.snapshot, true
}

func (s *StatusSink) EOD() (EODPrices, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.eod == nil {
		return EODPrices{}, false
	}
	return *s.eod, true
}

func (s *StatusSink) Counts() map[Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Kind]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
