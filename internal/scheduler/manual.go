package scheduler

import (
	"sync"
	"time"
)

type manualTask struct {
	delay time.Duration
	fn    func()
}

// ManualScheduler only runs tasks when told to. Tests use it to step
// through timers deterministically.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks map[Key]manualTask
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[Key]manualTask)}
}

func (m *ManualScheduler) Schedule(key Key, delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[key] = manualTask{delay: delay, fn: fn}
}

func (m *ManualScheduler) Cancel(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[key]
	delete(m.tasks, key)
	return ok
}

func (m *ManualScheduler) CancelRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.tasks {
		if k.RoomID == roomID {
			delete(m.tasks, k)
		}
	}
}

func (m *ManualScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = make(map[Key]manualTask)
}

// Delay returns the delay a pending task was scheduled with.
func (m *ManualScheduler) Delay(key Key) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[key]
	return t.delay, ok
}

func (m *ManualScheduler) Pending() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.tasks)
}

// Fire runs the task for key, if any, on the calling goroutine.
func (m *ManualScheduler) Fire(key Key) bool {
	m.mu.Lock()
	t, ok := m.tasks[key]
	delete(m.tasks, key)
	m.mu.Unlock()
	if ok {
		t.fn()
	}
	return ok
}
