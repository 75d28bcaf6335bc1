package strategy

import (
	"sync"

	"github.com/angeloszaimis/balancer-core/internal/backend"
)

// LeastConnStrategy routes to the server with the fewest in-flight requests.
// It is safe for concurrent use: selection and accounting share one lock.
type LeastConnStrategy struct {
	pool   *backend.Pool
	mutex  sync.Mutex
	counts []int // indexed by pool slot
}

// NewLeastConnStrategy creates a least-connections strategy with every
// count at zero.
func NewLeastConnStrategy(servers []backend.ServerID) (*LeastConnStrategy, error) {
	pool, err := backend.NewPool(servers)
	if err != nil {
		return nil, err
	}

	return &LeastConnStrategy{
		pool:   pool,
		counts: make([]int, pool.Len()),
	}, nil
}

// SelectNext returns the server with the lowest count. Ties go to the
// server that comes first in the pool.
func (l *LeastConnStrategy) SelectNext() backend.ServerID {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	best := 0
	for slot := 1; slot < len(l.counts); slot++ {
		if l.counts[slot] < l.counts[best] {
			best = slot
		}
	}

	return l.pool.At(best)
}

// NotifyStart records a request dispatched to id.
func (l *LeastConnStrategy) NotifyStart(id backend.ServerID) error {
	slot, ok := l.pool.Slot(id)
	if !ok {
		return &UnknownServerError{ID: id}
	}

	l.mutex.Lock()
	l.counts[slot]++
	l.mutex.Unlock()

	return nil
}

// NotifyFinish records a completed request on id. Extra finishes are
// absorbed: the count never drops below zero.
func (l *LeastConnStrategy) NotifyFinish(id backend.ServerID) error {
	slot, ok := l.pool.Slot(id)
	if !ok {
		return &UnknownServerError{ID: id}
	}

	l.mutex.Lock()
	if l.counts[slot] > 0 {
		l.counts[slot]--
	}
	l.mutex.Unlock()

	return nil
}

// Connections returns the current count for id.
func (l *LeastConnStrategy) Connections(id backend.ServerID) (int, error) {
	slot, ok := l.pool.Slot(id)
	if !ok {
		return 0, &UnknownServerError{ID: id}
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.counts[slot], nil
}

// Snapshot returns every count in pool order, read atomically.
func (l *LeastConnStrategy) Snapshot() []backend.Load {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	loads := make([]backend.Load, len(l.counts))
	for slot, n := range l.counts {
		loads[slot] = backend.Load{ID: l.pool.At(slot), Connections: n}
	}
	return loads
}

func (l *LeastConnStrategy) Name() string {
	return string(KindLeastConnections)
}
