// Package k8s is the cluster API client used by the orchestrator.
//
// It wraps k8s.io/client-go for the handful of calls oxide needs: node
// readiness and deletion, pod readiness by label, the /version probe and
// Server-Side Apply of multi-document manifests. Clients are built directly
// from kubeconfig bytes so nothing is written to a temporary file.
package k8s
