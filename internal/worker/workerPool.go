// Package worker runs best-effort side effects, such as referrer notices,
// off the request path.
package worker

import (
	"sync"

	"coinbazar/internal/logger"
)

type Task interface {
	Execute()
}

// TaskFunc lets a plain func be queued as a Task.
type TaskFunc func()

func (f TaskFunc) Execute() { f() }

type Pool struct {
	mu     sync.Mutex
	size   int
	closed bool
	tasks  chan Task
	kill   chan struct{}
	wg     sync.WaitGroup
}

func NewPool(speed int, queue int) *Pool {
	if speed < 1 {
		speed = 1
	}
	if queue < 0 {
		queue = 0
	}
	pool := &Pool{
		tasks: make(chan Task, queue),
		kill:  make(chan struct{}),
	}
	pool.Resize(speed)
	return pool
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			run(task)
		case <-p.kill:
			return
		}
	}
}

// run keeps a panicking task from taking its worker down.
func run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("worker task panicked: %v", r)
		}
	}()
	task.Execute()
}

func (p *Pool) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for p.size < n {
		p.size++
		p.wg.Add(1)
		go p.worker()
	}
	for p.size > n && p.size > 1 {
		p.size--
		p.kill <- struct{}{}
	}
}

// Close stops accepting tasks. Queued tasks still run; Wait blocks until
// they have.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.tasks)
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

// TryExec queues task only if there is room, dropping it otherwise.
func (p *Pool) TryExec(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}
