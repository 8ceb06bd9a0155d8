// Package s3 stores objects in Hetzner Object Storage (S3-compatible).
//
// oxide uses it to keep an off-machine copy of the cluster state bundle so a
// lost state directory does not orphan a running cluster.
package s3
