package scheduler

import (
	"sort"
	"sync"
)

// Scheduler runs callbacks on simulated frames. It never reads the wall
// clock: time only moves when Advance is called.
type Scheduler struct {
	mu     sync.Mutex
	frame  int64
	nextID uint64
	tasks  map[uint64]*task
}

type task struct {
	id        uint64
	due       int64
	interval  int64
	fn        func()
	cancelled bool
}

// Handle cancels a scheduled callback.
type Handle struct {
	s *Scheduler
	t *task
}

func (h Handle) Cancel() {
	if h.s == nil {
		return
	}
	h.s.mu.Lock()
	h.t.cancelled = true
	delete(h.s.tasks, h.t.id)
	h.s.mu.Unlock()
}

func (h Handle) Active() bool {
	if h.s == nil {
		return false
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	_, ok := h.s.tasks[h.t.id]
	return ok && !h.t.cancelled
}

func New() *Scheduler {
	return &Scheduler{tasks: make(map[uint64]*task)}
}

// After runs fn once, delay frames from now. A delay below 1 runs on the
// next Advance.
func (s *Scheduler) After(delay int64, fn func()) Handle {
	return s.add(delay, 0, fn)
}

// Every runs fn after delay frames and then every interval frames.
func (s *Scheduler) Every(delay, interval int64, fn func()) Handle {
	if interval < 1 {
		interval = 1
	}
	return s.add(delay, interval, fn)
}

func (s *Scheduler) add(delay, interval int64, fn func()) Handle {
	if fn == nil {
		return Handle{}
	}
	if delay < 1 {
		delay = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &task{
		id:       s.nextID,
		due:      s.frame + delay,
		interval: interval,
		fn:       fn,
	}
	s.tasks[t.id] = t
	return Handle{s: s, t: t}
}

// Advance moves one frame forward and runs every callback that became due,
// ordered by due frame then by registration.
func (s *Scheduler) Advance() {
	s.mu.Lock()
	s.frame++
	now := s.frame
	due := make([]*task, 0)
	for _, t := range s.tasks {
		if t.due <= now {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		if t.interval > 0 {
			t.due = now + t.interval
		} else {
			delete(s.tasks, t.id)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		if s.isCancelled(t) {
			continue
		}
		t.fn()
	}
}

func (s *Scheduler) Frame() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// CancelAll drops every pending callback.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	for _, t := range s.tasks {
		t.cancelled = true
	}
	s.tasks = make(map[uint64]*task)
	s.mu.Unlock()
}

func (s *Scheduler) isCancelled(t *task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.cancelled
}
