package loadbalancer

import (
	"sync"

	"github.com/angeloszaimis/balancer-core/internal/backend"
)

// Reservation is a server handed out by Acquire.
type Reservation struct {
	lb     *LoadBalancer
	server backend.ServerID
	once   sync.Once
	err    error
}

func (r *Reservation) Server() backend.ServerID {
	return r.server
}

// Release reports the request as finished. Only the first call has an
// effect; later calls return the first call's result.
func (r *Reservation) Release() error {
	r.once.Do(func() {
		r.err = r.lb.Finish(r.server)
	})
	return r.err
}
