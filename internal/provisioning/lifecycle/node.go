package lifecycle

import (
	"github.com/imamik/oxide/internal/config"
	"github.com/imamik/oxide/internal/platform/hcloud"
	"github.com/imamik/oxide/internal/platform/talos"
	"github.com/imamik/oxide/internal/util/labels"
	"github.com/imamik/oxide/internal/util/naming"
)

// Status is the position of a node in its add or remove workflow.
type Status string

const (
	StatusProvisioning Status = "Provisioning"
	StatusJoining      Status = "Joining"
	StatusReady        Status = "Ready"
	StatusPrecheckOK   Status = "PrecheckOK"
	StatusResetIssued  Status = "ResetIssued"
	StatusDraining     Status = "Draining"
	StatusCordoned     Status = "Cordoned"
	StatusRemoving     Status = "Removing"
	StatusRemoved      Status = "Removed"
	StatusFailed       Status = "Failed"
	StatusBlocked      Status = "Blocked"
)

// Terminal reports whether no workflow step follows s.
func (s Status) Terminal() bool {
	switch s {
	case StatusReady, StatusRemoved, StatusFailed, StatusBlocked:
		return true
	}
	return false
}

// Node is one cluster member, identified by pool and index.
type Node struct {
	Name      string
	Pool      string
	Index     int
	Role      config.Role
	ServerID  int64
	PrivateIP string
	PublicIP  string
	Status    Status
}

// Target returns the management API address of the node. The public
// address is preferred since the firewall only admits it from outside.
func (n Node) Target() talos.Target {
	addr := n.PublicIP
	if addr == "" {
		addr = n.PrivateIP
	}
	return talos.Target{Name: n.Name, Address: addr}
}

// NodeFromServer maps a live server of cluster to a Node in status Ready.
// Servers whose name does not follow the cluster naming scheme are rejected.
func NodeFromServer(cluster string, srv *hcloud.Server) (Node, bool) {
	pool, index, ok := naming.ParseServer(cluster, srv.Name)
	if !ok {
		return Node{}, false
	}
	if p := srv.Labels[labels.KeyPool]; p != "" && p != pool {
		return Node{}, false
	}
	return Node{
		Name:      srv.Name,
		Pool:      pool,
		Index:     index,
		Role:      config.Role(srv.Labels[labels.KeyRole]),
		ServerID:  srv.ID,
		PrivateIP: srv.PrivateIP,
		PublicIP:  srv.PublicIP,
		Status:    StatusReady,
	}, true
}
