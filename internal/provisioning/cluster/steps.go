package cluster

import "fmt"

// Step is one stage of cluster creation.
type Step int

const (
	StepNone Step = iota
	StepInfrastructure
	StepBootstrap
	StepClusterAPI
	StepKubeconfig
	StepNodes
	StepCilium
	StepNodesReady
)

var stepNames = map[Step]string{
	StepNone:           "none",
	StepInfrastructure: "infrastructure and first control plane",
	StepBootstrap:      "etcd bootstrap",
	StepClusterAPI:     "cluster API",
	StepKubeconfig:     "kubeconfig",
	StepNodes:          "remaining nodes",
	StepCilium:         "cilium",
	StepNodesReady:     "nodes ready",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// StepError reports the step that failed and the furthest step completed
// before it.
type StepError struct {
	Step      Step
	Completed Step
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d/%d (%s) failed, completed through %q: %v",
		int(e.Step), int(StepNodesReady), e.Step, e.Completed, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
