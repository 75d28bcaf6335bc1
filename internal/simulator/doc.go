// Package simulator replays a synthetic workload against a load balancer:
// a fixed number of requests, dispatched at a steady pace, each holding its
// server for a random time before finishing. It reports how requests were
// distributed and the connection counts left behind.
package simulator
