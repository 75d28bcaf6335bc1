// Package backend defines the closed-world server pool shared by every
// selection strategy: server identifiers, their construction-time slots,
// optional weights, and the configuration errors raised while building them.
package backend
