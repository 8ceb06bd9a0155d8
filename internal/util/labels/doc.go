// Package labels builds the Hetzner Cloud labels that mark resources as owned
// by an oxide cluster. Every lookup of cluster resources goes through a
// label selector built here.
package labels
