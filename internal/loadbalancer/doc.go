// Package loadbalancer wraps a selection strategy for use by the routing
// layer. It provides the external serialization that round robin and
// weighted round robin require, and reservations that pair every started
// request with exactly one finish for least connections.
package loadbalancer
