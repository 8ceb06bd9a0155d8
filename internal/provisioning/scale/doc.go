// Package scale brings one node pool of an existing cluster to a target size.
//
// Scaling up adds nodes with fresh indices above every index the pool ever
// used. Scaling down removes the highest indices first, one node at a time.
package scale
