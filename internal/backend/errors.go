package backend

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

var (
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownServer matches every *UnknownServerError.
	ErrUnknownServer = errors.New("unknown server")
)

// ConfigurationError is returned when a pool or strategy cannot be built.
// The caller must treat it as a fatal setup error.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// UnknownServerError is returned when an id outside the pool is reported to
// a load-tracking strategy. No state is mutated when it is returned.
type UnknownServerError struct {
	ID ServerID
}

func (e *UnknownServerError) Error() string {
	return "unknown server " + strconv.Quote(string(e.ID))
}

func (e *UnknownServerError) Is(target error) bool {
	return target == ErrUnknownServer
}
