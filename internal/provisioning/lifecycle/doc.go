// Package lifecycle moves single nodes into and out of a cluster.
//
// Adding a node creates its server with the role machine configuration as boot
// payload and waits for the node to report Ready:
//
//	Provisioning -> Joining -> Ready | Failed
//
// Removing a node is strictly sequential and stops at the first step that
// cannot be confirmed, leaving the node Blocked:
//
//	Ready -> PrecheckOK -> ResetIssued -> Draining -> Cordoned -> Removing -> Removed | Blocked
//
// The server is never deleted before the node object, and the node object is
// never deleted before the node was seen NotReady and unschedulable.
package lifecycle
