package metrics

import (
	"sync"
	"time"
)

// Metrics holds per-server selection and accounting counters.
type Metrics struct {
	mutex      sync.RWMutex
	selections map[string]int64
	started    map[string]int64
	finished   map[string]int64
	inFlight   map[string]int64
	// Rejected ids are outside the pool, so only the total is kept.
	unknown    int64
	startTime  time.Time
}

type Snapshot struct {
	TotalSelections int64                    `json:"total_selections"`
	InFlight        int64                    `json:"in_flight"`
	UnknownServers  int64                    `json:"unknown_servers"`
	Uptime          time.Duration            `json:"uptime"`
	Servers         map[string]ServerMetrics `json:"servers"`
	Algorithm       string                   `json:"algorithm"`
}

type ServerMetrics struct {
	Selections int64 `json:"selections"`
	Started    int64 `json:"started"`
	Finished   int64 `json:"finished"`
	InFlight   int64 `json:"in_flight"`
}

func (m *Metrics) RecordSelection(server string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.selections[server]++
}

func (m *Metrics) RecordStart(server string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.started[server]++
	m.inFlight[server]++
}

// RecordFinish mirrors the strategy's accounting: in-flight never drops
// below zero.
func (m *Metrics) RecordFinish(server string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.finished[server]++
	if m.inFlight[server] > 0 {
		m.inFlight[server]--
	}
}

// RecordRejection counts an accounting call for a server outside the pool.
func (m *Metrics) RecordRejection() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.unknown++
}

func (m *Metrics) InFlight(server string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.inFlight[server]
}

func (m *Metrics) Snapshot(algorithm string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		UnknownServers: m.unknown,
		Uptime:         time.Since(m.startTime),
		Servers:        make(map[string]ServerMetrics),
		Algorithm:      algorithm,
	}

	all := make(map[string]bool)
	for _, counters := range []map[string]int64{m.selections, m.started, m.finished} {
		for server := range counters {
			all[server] = true
		}
	}

	for server := range all {
		sm := ServerMetrics{
			Selections: m.selections[server],
			Started:    m.started[server],
			Finished:   m.finished[server],
			InFlight:   m.inFlight[server],
		}

		snap.TotalSelections += sm.Selections
		snap.InFlight += sm.InFlight
		snap.Servers[server] = sm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		selections: make(map[string]int64),
		started:    make(map[string]int64),
		finished:   make(map[string]int64),
		inFlight:   make(map[string]int64),
		startTime:  time.Now(),
	}
}
