package relist

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/utils"
)

// TaskSubmitter accepts work for asynchronous execution. The engine uses it to
// re-enter the publish phase after the withdraw-to-publish delay without
// holding a worker.
type TaskSubmitter interface {
	Submit(task func())
}

// WorkerPool runs submitted tasks on a fixed set of goroutines. Each relist
// rule executes sequentially within one task; rules run in parallel across
// workers.
type WorkerPool struct {
	log   *logrus.Logger
	tasks chan func()
	wg    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewWorkerPool(size int, log *logrus.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	p := &WorkerPool{
		log:   log,
		tasks: make(chan func(), size*4),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		utils.SafeGo(func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		})
	}
	return p
}

// Submit enqueues a task. After Stop the task runs inline on the caller's
// goroutine instead of being dropped: a delay continuation arriving during
// shutdown must still finish its attempt and release its claim. The send
// happens under the same lock Stop closes the channel under, so a send can
// never race the close.
func (p *WorkerPool) Submit(task func()) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.log.Warn("Worker pool stopped, running task inline")
		task()
		return
	}
	p.tasks <- task
	p.mu.Unlock()
}

// Stop drains queued tasks and waits for workers to finish.
func (p *WorkerPool) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	utils.SafeGo(func() {
		p.wg.Wait()
		close(done)
	})
	select {
	case <-done:
		p.log.Info("Worker pool stopped")
	case <-ctx.Done():
		p.log.Warn("Timeout waiting for worker pool to drain")
	}
}
