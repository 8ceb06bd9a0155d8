// Package state persists the cluster state directory: the generated
// configuration bundle, which is created once and reused by every later
// command, and state.yaml with the bootstrap marker and per-pool index
// high-water marks.
//
// Files are written with mode 0600. An advisory file lock keeps two local
// oxide processes from writing the same directory; it does not coordinate
// across machines.
package state
