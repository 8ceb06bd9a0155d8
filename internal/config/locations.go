package config

import (
	"sort"
)

// locationZones maps each Hetzner Cloud location to the network zone it belongs to.
// https://docs.hetzner.com/cloud/general/locations/
var locationZones = map[string]string{
	"fsn1": "eu-central", // Falkenstein
	"nbg1": "eu-central", // Nuremberg
	"hel1": "eu-central", // Helsinki
	"ash":  "us-east",    // Ashburn
	"hil":  "us-west",    // Hillsboro
	"sin":  "ap-southeast",
}

// ZoneForLocation returns the network zone of a location.
func ZoneForLocation(location string) (string, bool) {
	zone, ok := locationZones[location]
	return zone, ok
}

// SupportedLocations returns the known locations in sorted order.
func SupportedLocations() []string {
	locs := make([]string, 0, len(locationZones))
	for l := range locationZones {
		locs = append(locs, l)
	}
	sort.Strings(locs)
	return locs
}
