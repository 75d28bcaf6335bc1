package backend

import (
	"strconv"
	"strings"
)

// ServerID names a backend server. It is opaque to the selection core.
type ServerID string

func (id ServerID) String() string {
	return string(id)
}

// Weighted pairs a server with the number of consecutive selections it
// receives per weighted round-robin cycle.
type Weighted struct {
	ID     ServerID
	Weight int
}

// Load is a point-in-time connection count for one server.
type Load struct {
	ID          ServerID
	Connections int
}

// Pool is an ordered, immutable set of servers. The index of a server in
// the pool is its slot and never changes.
type Pool struct {
	servers []ServerID
	slots   map[ServerID]int
}

// NewPool builds a pool from ids in the given order. It fails with a
// *ConfigurationError if ids is empty, contains a blank id, or repeats an id.
func NewPool(ids []ServerID) (*Pool, error) {
	if len(ids) == 0 {
		return nil, &ConfigurationError{Reason: "server pool is empty"}
	}

	servers := make([]ServerID, len(ids))
	slots := make(map[ServerID]int, len(ids))

	for i, id := range ids {
		if strings.TrimSpace(string(id)) == "" {
			return nil, &ConfigurationError{Reason: "server id at position " + strconv.Itoa(i) + " is blank"}
		}
		if _, dup := slots[id]; dup {
			return nil, &ConfigurationError{Reason: "duplicate server id " + string(id)}
		}

		servers[i] = id
		slots[id] = i
	}

	return &Pool{servers: servers, slots: slots}, nil
}

// Len returns the number of servers in the pool.
func (p *Pool) Len() int {
	return len(p.servers)
}

// At returns the server in slot i.
func (p *Pool) At(i int) ServerID {
	return p.servers[i]
}

// Slot returns the construction-time slot of id.
func (p *Pool) Slot(id ServerID) (int, bool) {
	slot, ok := p.slots[id]
	return slot, ok
}

func (p *Pool) Contains(id ServerID) bool {
	_, ok := p.slots[id]
	return ok
}

// Servers returns a copy of the pool in construction order.
func (p *Pool) Servers() []ServerID {
	out := make([]ServerID, len(p.servers))
	copy(out, p.servers)
	return out
}

// IDs strips the weights from servers, keeping their order.
func IDs(servers []Weighted) []ServerID {
	ids := make([]ServerID, len(servers))
	for i, s := range servers {
		ids[i] = s.ID
	}
	return ids
}
