package core

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultRevealInterval is the gap between two reveals.
const DefaultRevealInterval = 350 * time.Millisecond

// RevealScheduler admits ready resort keys into the visible set one at a
// time, first in first out, at most once per interval. It is not safe for
// concurrent use; the Orchestrator's loop owns it.
type RevealScheduler struct {
	interval time.Duration
	limiter  *rate.Limiter
	queue    []string
	queued   map[string]bool
	shown    map[string]bool
}

func NewRevealScheduler(interval time.Duration) *RevealScheduler {
	if interval <= 0 {
		interval = DefaultRevealInterval
	}
	s := &RevealScheduler{interval: interval}
	s.Reset()
	return s
}

// Reset forgets every queued and shown key and lets the next reveal happen
// immediately.
func (s *RevealScheduler) Reset() {
	s.limiter = rate.NewLimiter(rate.Every(s.interval), 1)
	s.queue = nil
	s.queued = make(map[string]bool)
	s.shown = make(map[string]bool)
}

// Enqueue adds key to the back of the queue. Keys already queued or shown
// are ignored and Enqueue reports false.
func (s *RevealScheduler) Enqueue(key string) bool {
	if s.queued[key] || s.shown[key] {
		return false
	}
	s.queued[key] = true
	s.queue = append(s.queue, key)
	return true
}

// Retain drops queued keys for which keep returns false. Shown keys are
// unaffected.
func (s *RevealScheduler) Retain(keep func(key string) bool) {
	kept := s.queue[:0]
	for _, k := range s.queue {
		if keep(k) {
			kept = append(kept, k)
			continue
		}
		delete(s.queued, k)
	}
	s.queue = kept
}

// Delay returns how long until the next queued key may be admitted. ok is
// false when the queue is empty.
func (s *RevealScheduler) Delay(now time.Time) (d time.Duration, ok bool) {
	if len(s.queue) == 0 {
		return 0, false
	}
	tokens := s.limiter.TokensAt(now)
	if tokens >= 1 {
		return 0, true
	}
	return time.Duration((1 - tokens) * float64(s.interval)), true
}

// Admit reveals the oldest queued key if the interval allows it at now.
func (s *RevealScheduler) Admit(now time.Time) (string, bool) {
	if len(s.queue) == 0 || !s.limiter.AllowN(now, 1) {
		return "", false
	}
	key := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.queued, key)
	s.shown[key] = true
	return key, true
}

func (s *RevealScheduler) Shown(key string) bool { return s.shown[key] }
func (s *RevealScheduler) Queued(key string) bool { return s.queued[key] }
func (s *RevealScheduler) Len() int               { return len(s.queue) }
func (s *RevealScheduler) ShownCount() int        { return len(s.shown) }
