// Package keygen generates the cluster SSH key pair.
//
// Hetzner Cloud mails a root password for servers created without an SSH
// key, so every cluster registers one. Talos never uses it.
package keygen
