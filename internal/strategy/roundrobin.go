package strategy

import (
	"github.com/angeloszaimis/balancer-core/internal/backend"
)

// roundRobinStrategy is not safe for concurrent use.
type roundRobinStrategy struct {
	pool    *backend.Pool
	current int
}

func (rr *roundRobinStrategy) SelectNext() backend.ServerID {
	id := rr.pool.At(rr.current)
	rr.current = (rr.current + 1) % rr.pool.Len()
	return id
}

func (rr *roundRobinStrategy) Name() string {
	return string(KindRoundRobin)
}

// NewRoundRobinStrategy cycles through servers in the given order.
func NewRoundRobinStrategy(servers []backend.ServerID) (Strategy, error) {
	pool, err := backend.NewPool(servers)
	if err != nil {
		return nil, err
	}

	return &roundRobinStrategy{
		pool:    pool,
		current: 0,
	}, nil
}
