// Package helm installs charts through the Helm v3 SDK using kubeconfig
// bytes held in memory.
//
// Charts are resolved against their repository index and loaded straight
// from the downloaded archive, so nothing is left in the local Helm cache.
package helm
