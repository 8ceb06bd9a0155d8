package config

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
)

// serverTypeOptions are shared vCPU x86 types offered by the wizard.
var serverTypeOptions = []huh.Option[string]{
	huh.NewOption("CX23 - 2 vCPU, 4GB RAM", "cx23"),
	huh.NewOption("CX33 - 4 vCPU, 8GB RAM", "cx33"),
	huh.NewOption("CX43 - 8 vCPU, 16GB RAM", "cx43"),
	huh.NewOption("CPX22 - 2 vCPU, 4GB RAM", "cpx22"),
	huh.NewOption("CPX32 - 4 vCPU, 8GB RAM", "cpx32"),
}

// RunWizard asks for the values of an example configuration, starting from
// DefaultExampleOptions.
func RunWizard(ctx context.Context) (ExampleOptions, error) {
	opts := DefaultExampleOptions()

	locations := make([]huh.Option[string], 0, len(locationZones))
	for _, l := range SupportedLocations() {
		zone, _ := ZoneForLocation(l)
		locations = append(locations, huh.NewOption(fmt.Sprintf("%s (%s)", l, zone), l))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster name").
				Description("Lowercase DNS label, used as prefix of every resource").
				Placeholder(opts.ClusterName).
				Value(&opts.ClusterName).
				Validate(validateClusterName),
			huh.NewSelect[string]().
				Title("Location").
				Options(locations...).
				Value(&opts.Location),
		),
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Control plane nodes").
				Description("An odd count keeps etcd quorum with the fewest nodes").
				Options(
					huh.NewOption("1 (no high availability)", 1),
					huh.NewOption("3", 3),
					huh.NewOption("5", 5),
				).
				Value(&opts.ControlPlanes),
			huh.NewSelect[string]().
				Title("Control plane server type").
				Options(serverTypeOptions...).
				Value(&opts.ControlPlaneType),
		),
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Worker nodes").
				Options(
					huh.NewOption("none (schedule on control planes)", 0),
					huh.NewOption("1", 1),
					huh.NewOption("2", 2),
					huh.NewOption("3", 3),
					huh.NewOption("5", 5),
				).
				Value(&opts.Workers),
			huh.NewSelect[string]().
				Title("Worker server type").
				Options(serverTypeOptions...).
				Value(&opts.WorkerType),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return ExampleOptions{}, fmt.Errorf("wizard canceled: %w", err)
	}
	return opts, nil
}

func validateClusterName(s string) error {
	if s == "" {
		return fmt.Errorf("cluster name is required")
	}
	if len(s) > 32 || !dnsLabel.MatchString(s) {
		return fmt.Errorf("must be lowercase letters, digits and hyphens, at most 32 characters")
	}
	return nil
}
