// Package config defines the cluster specification consumed by every oxide
// command, together with its loader, defaults and validator.
//
// [LoadFile] reads the YAML file, [ApplyDefaults] fills optional fields and
// [Validate] checks the result in a single pass that collects every
// violation. Nothing in this package talks to the network.
package config
