// Package strategy implements the server selection algorithms:
//
//   - Round Robin: cycles through the pool in order
//   - Weighted Round Robin: each server receives weight consecutive picks per cycle
//   - Least Connections: routes to the server with the fewest in-flight requests
//
// Round robin and weighted round robin keep an unsynchronized cursor; callers
// must serialize access to one instance. Least connections guards selection
// and accounting with a single mutex and may be shared freely.
//
// All strategies work over a fixed pool chosen at construction time.
package strategy
