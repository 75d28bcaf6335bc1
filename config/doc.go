// Package config loads the balancer configuration from YAML files,
// environment variables (BALANCER_ prefix) and command-line flags. It
// defines the server pool, the selection strategy, logging, the workload
// simulation and the optional metrics endpoint.
package config
