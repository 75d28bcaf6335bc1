package strategy

import (
	"strings"

	"github.com/angeloszaimis/balancer-core/internal/backend"
)

// Strategy picks the next server for a request. SelectNext never fails once
// the strategy has been constructed.
type Strategy interface {
	SelectNext() backend.ServerID
	Name() string
}

// LoadTracker is implemented by strategies that account for in-flight
// requests. Every successful NotifyStart must be paired with a NotifyFinish
// for the same server: a start that is never finished inflates that
// server's count for the lifetime of the strategy, and the only symptom is
// skewed selection.
type LoadTracker interface {
	NotifyStart(id backend.ServerID) error
	NotifyFinish(id backend.ServerID) error
}

type (
	ConfigurationError = backend.ConfigurationError
	UnknownServerError = backend.UnknownServerError
)

var (
	ErrConfiguration = backend.ErrConfiguration
	ErrUnknownServer = backend.ErrUnknownServer
)

type Kind string

const (
	KindRoundRobin         Kind = "round-robin"
	KindWeightedRoundRobin Kind = "weighted-round-robin"
	KindLeastConnections   Kind = "least-conn"
)

// Kinds lists every supported strategy kind.
func Kinds() []Kind {
	return []Kind{KindRoundRobin, KindWeightedRoundRobin, KindLeastConnections}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", &ConfigurationError{Reason: "unknown strategy " + s}
}

// New builds the strategy of the given kind. Weights are only consulted by
// weighted round-robin.
func New(kind Kind, servers []backend.Weighted) (Strategy, error) {
	switch kind {
	case KindWeightedRoundRobin:
		return NewWeightedRoundRobinStrategy(servers)
	case KindRoundRobin:
		return NewRoundRobinStrategy(backend.IDs(servers))
	case KindLeastConnections:
		lc, err := NewLeastConnStrategy(backend.IDs(servers))
		if err != nil {
			return nil, err
		}
		return lc, nil
	default:
		return nil, &ConfigurationError{Reason: "unknown strategy " + string(kind)}
	}
}

// Synchronized reports whether s may be called from several goroutines
// without external serialization.
func Synchronized(s Strategy) bool {
	_, ok := s.(*LeastConnStrategy)
	return ok
}
