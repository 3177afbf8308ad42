// Package scheduler runs delayed room tasks such as quiz auto-advance and
// move timeouts. A task is keyed by room and kind; scheduling the same key
// again replaces the pending task.
package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Kinds of scheduled work.
const (
	KindAutoAdvance = "auto_advance"
	KindMoveTimeout = "move_timeout"
)

type Key struct {
	RoomID string
	Kind   string
}

type Scheduler interface {
	Schedule(key Key, delay time.Duration, fn func())
	// Cancel drops the pending task for key and reports whether one existed.
	Cancel(key Key) bool
	CancelRoom(roomID string)
	Stop()
}

type timerEntry struct {
	timer *time.Timer
	gen   uint64
}

// TimerScheduler backs each task with a time.Timer.
type TimerScheduler struct {
	mu      sync.Mutex
	entries map[Key]timerEntry
	gen     uint64
	stopped bool
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{entries: make(map[Key]timerEntry)}
}

func (s *TimerScheduler) Schedule(key Key, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.entries[key]; ok {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := time.AfterFunc(delay, func() {
		// A timer that already fired cannot be stopped, so a replaced or
		// cancelled task must notice here and bail out.
		s.mu.Lock()
		cur, ok := s.entries[key]
		if !ok || cur.gen != gen || s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.entries, key)
		s.mu.Unlock()
		fn()
	})
	s.entries[key] = timerEntry{timer: t, gen: gen}
}

func (s *TimerScheduler) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

func (s *TimerScheduler) CancelRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if k.RoomID == roomID {
			e.timer.Stop()
			delete(s.entries, k)
		}
	}
}

// Stop cancels everything and refuses new tasks.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, k)
	}
}

// Pending lists the keys with a task waiting, sorted.
func (s *TimerScheduler) Pending() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.entries)
}

func sortedKeys[V any](m map[Key]V) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RoomID == keys[j].RoomID {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].RoomID < keys[j].RoomID
	})
	return keys
}
