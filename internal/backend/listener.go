package backend

import (
	"sync"

	"github.com/matheus3301/stash/internal/model"
)

// listener feeds one ListenUpdates callback from a FIFO queue, so a slow
// callback never blocks push and bundles arrive in push order.
type listener struct {
	fn func(model.Updates)

	mu    sync.Mutex
	queue []model.Updates

	wake chan struct{}
	done chan struct{}
}

func newListener(fn func(model.Updates)) *listener {
	l := &listener{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *listener) enqueue(u model.Updates) {
	l.mu.Lock()
	l.queue = append(l.queue, u)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// stop ends delivery; queued bundles are dropped.
func (l *listener) stop() {
	close(l.done)
}

func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			u, ok := l.next()
			if !ok {
				break
			}
			select {
			case <-l.done:
				return
			default:
			}
			l.fn(u)
		}
	}
}

func (l *listener) next() (model.Updates, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return model.Updates{}, false
	}
	u := l.queue[0]
	l.queue[0] = model.Updates{}
	l.queue = l.queue[1:]
	return u, true
}
