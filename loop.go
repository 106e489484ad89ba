package bayeux

import (
	"sync"
	"time"
)

// eventLoop is the single background execution context that runs protocol
// callbacks and retry timers. Public client operations never block on it;
// they queue work and return.
type eventLoop struct {
	logger Logger

	tasks chan func()
	quit  chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
}

func newEventLoop(logger Logger) *eventLoop {
	return &eventLoop{
		logger: logger,
		tasks:  make(chan func(), 16),
		quit:   make(chan struct{}),
	}
}

// EnsureRunning spawns the loop goroutine the first time it is called. The
// goroutine does not keep the process alive. A stopped loop cannot be
// started again.
func (l *eventLoop) EnsureRunning() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running || l.stopped {
		return
	}
	l.running = true
	go l.run()
}

// Running reports whether the loop goroutine is alive
func (l *eventLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stop terminates the loop. Pending and later-submitted tasks are dropped.
func (l *eventLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.running = false
	close(l.quit)
}

func (l *eventLoop) run() {
	for {
		select {
		case task := <-l.tasks:
			// Stop may have landed while this task sat in the buffer; a
			// plain select picks randomly between ready cases, so quit has
			// to be re-checked with priority before running anything
			select {
			case <-l.quit:
				return
			default:
			}
			task()
		case <-l.quit:
			return
		}
	}
}

// Submit queues fn to run on the loop goroutine. fn is silently dropped if
// the loop has been stopped.
func (l *eventLoop) Submit(fn func()) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		l.logger.Debug("task submitted after loop stop, dropping")
		return
	}
	select {
	case <-l.quit:
		l.logger.Debug("task submitted after loop stop, dropping")
	case l.tasks <- fn:
	}
}

// Schedule arranges for fn to run on the loop goroutine after the given
// delay. The returned task can be canceled; a canceled task is a no-op even
// if its timer already fired.
func (l *eventLoop) Schedule(d time.Duration, fn func()) *scheduledTask {
	t := &scheduledTask{}
	t.timer = time.AfterFunc(d, func() {
		l.Submit(func() {
			if t.Canceled() {
				return
			}
			fn()
		})
	})
	return t
}

type scheduledTask struct {
	timer *time.Timer

	mu       sync.Mutex
	canceled bool
}

// Cancel prevents the task from running. Safe to call more than once.
func (t *scheduledTask) Cancel() {
	t.mu.Lock()
	t.canceled = true
	t.mu.Unlock()
	t.timer.Stop()
}

// Canceled reports whether Cancel has been called
func (t *scheduledTask) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}
