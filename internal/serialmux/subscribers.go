package serialmux

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/banshee-data/line-detector/internal/monitoring"
)

// subscriberBuffer absorbs short bursts of scans while a subscriber is busy.
const subscriberBuffer = 16

// dropLogEvery spaces out the warnings for a subscriber that keeps falling
// behind. Its first drop is always logged.
const dropLogEvery = 100

// MuxStats counts the lines read from the board and the lines lost to
// subscribers whose buffer was full.
type MuxStats struct {
	Lines       uint64            `json:"lines"`
	Dropped     uint64            `json:"dropped"`
	Subscribers int               `json:"subscribers"`
	Lagging     map[string]uint64 `json:"lagging,omitempty"` // drops per subscriber ID
}

type subscriber struct {
	ch      chan string
	dropped uint64
}

// subscriberSet fans lines out without ever blocking the reader. Once closed
// it hands out closed channels so late subscribers do not hang.
type subscriberSet struct {
	mu      sync.Mutex
	subs    map[string]*subscriber
	closed  bool
	lines   uint64
	dropped uint64
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[string]*subscriber)}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *subscriberSet) add() (string, chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return id, ch
	}
	s.subs[id] = &subscriber{ch: ch}
	return id, ch
}

func (s *subscriberSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		close(sub.ch)
		delete(s.subs, id)
	}
}

// closeAll closes every subscriber channel. It reports false when the set
// was already closed.
func (s *subscriberSet) closeAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
	return true
}

// publish offers line to every subscriber and reports false once the set is
// closed.
func (s *subscriberSet) publish(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.lines++
	for id, sub := range s.subs {
		select {
		case sub.ch <- line:
		default:
			sub.dropped++
			s.dropped++
			if sub.dropped == 1 || sub.dropped%dropLogEvery == 0 {
				monitoring.Logf("serial subscriber %s is behind: %d lines dropped", id, sub.dropped)
			}
		}
	}
	return true
}

func (s *subscriberSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *subscriberSet) stats() MuxStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := MuxStats{Lines: s.lines, Dropped: s.dropped, Subscribers: len(s.subs)}
	for id, sub := range s.subs {
		if sub.dropped == 0 {
			continue
		}
		if st.Lagging == nil {
			st.Lagging = make(map[string]uint64)
		}
		st.Lagging[id] = sub.dropped
	}
	return st
}
