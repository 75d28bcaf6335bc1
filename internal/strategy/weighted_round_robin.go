package strategy

import (
	"strconv"

	"github.com/angeloszaimis/balancer-core/internal/backend"
)

// weightedRoundRobinStrategy hands each server weight consecutive selections
// per cycle, in pool order. Servers with weight 0 are never returned.
// It is not safe for concurrent use.
type weightedRoundRobinStrategy struct {
	pool      *backend.Pool
	weights   []int
	index     int
	remaining int
}

// NewWeightedRoundRobinStrategy creates a weighted round-robin strategy over
// servers. It fails if servers is empty, a weight is negative, or no server
// has a positive weight.
func NewWeightedRoundRobinStrategy(servers []backend.Weighted) (Strategy, error) {
	pool, err := backend.NewPool(backend.IDs(servers))
	if err != nil {
		return nil, err
	}

	weights := make([]int, len(servers))
	first := -1

	for i, s := range servers {
		if s.Weight < 0 {
			return nil, &ConfigurationError{
				Reason: "server " + string(s.ID) + " has negative weight " + strconv.Itoa(s.Weight),
			}
		}
		weights[i] = s.Weight
		if first < 0 && s.Weight > 0 {
			first = i
		}
	}

	if first < 0 {
		return nil, &ConfigurationError{Reason: "every server has weight 0"}
	}

	return &weightedRoundRobinStrategy{
		pool:      pool,
		weights:   weights,
		index:     first,
		remaining: weights[first],
	}, nil
}

// SelectNext returns the current server until its budget is spent, then
// moves to the next server with a positive weight.
func (w *weightedRoundRobinStrategy) SelectNext() backend.ServerID {
	// Terminates: construction guarantees a positive weight somewhere.
	for w.remaining <= 0 {
		w.index = (w.index + 1) % w.pool.Len()
		w.remaining = w.weights[w.index]
	}

	w.remaining--
	return w.pool.At(w.index)
}

func (w *weightedRoundRobinStrategy) Name() string {
	return string(KindWeightedRoundRobin)
}
