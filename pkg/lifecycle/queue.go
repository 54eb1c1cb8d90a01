package lifecycle

import (
	"fmt"
	"sync"
)

type task struct {
	fn   func() error
	done chan error
}

// Queue runs submitted tasks one at a time in FIFO order. A worker
// goroutine is started on demand and exits when the queue is empty.
// The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	tasks   []*task
	running bool
	active  int
}

// Do enqueues fn and blocks until it has run, returning its error.
// A panic inside fn is returned as an error.
func (q *Queue) Do(fn func() error) error {
	t := &task{fn: fn, done: make(chan error, 1)}

	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	if !q.running {
		q.running = true
		go q.work()
	}
	q.mu.Unlock()

	return <-t.done
}

// Len returns the number of queued tasks, including one that is executing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks) + q.active
}

func (q *Queue) work() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.active = 1
		q.mu.Unlock()

		err := run(t.fn)

		q.mu.Lock()
		q.active = 0
		q.mu.Unlock()
		t.done <- err
	}
}

func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lifecycle task panicked: %v", r)
		}
	}()
	return fn()
}
