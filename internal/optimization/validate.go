package optimization

import (
	"fmt"
	"strings"
)

// Validate checks every job, vehicle and depot and reports all violations at once.
func Validate(jobs []CollectionJob, vehicles []DriverVehicle, depots []DepotLocation) error {
	var v []Violation

	seenJobs := make(map[string]bool, len(jobs))
	for i, j := range jobs {
		field := fmt.Sprintf("jobs[%d]", i)
		v = appendIDViolations(v, field, j.ID, seenJobs)
		v = appendLocationViolations(v, field+".location", j.Location)
	}

	seenVehicles := make(map[string]bool, len(vehicles))
	for i, veh := range vehicles {
		field := fmt.Sprintf("vehicles[%d]", i)
		v = appendIDViolations(v, field, veh.ID, seenVehicles)
		v = appendLocationViolations(v, field+".startLocation", veh.StartLocation)
		if veh.Capacity <= 0 {
			v = append(v, Violation{
				Field:   field + ".capacity",
				Message: fmt.Sprintf("must be positive, got %d", veh.Capacity),
			})
		}
	}

	seenDepots := make(map[string]bool, len(depots))
	for i, d := range depots {
		field := fmt.Sprintf("depots[%d]", i)
		v = appendIDViolations(v, field, d.ID, seenDepots)
		v = appendLocationViolations(v, field+".location", d.Location)
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

func appendIDViolations(v []Violation, field, id string, seen map[string]bool) []Violation {
	if strings.TrimSpace(id) == "" {
		return append(v, Violation{Field: field + ".id", Message: "must not be blank"})
	}
	if seen[id] {
		return append(v, Violation{Field: field + ".id", Message: fmt.Sprintf("duplicate id %q", id)})
	}
	seen[id] = true
	return v
}

func appendLocationViolations(v []Violation, field string, loc Location) []Violation {
	if !(loc.Longitude >= -180 && loc.Longitude <= 180) {
		v = append(v, Violation{
			Field:   field + ".longitude",
			Message: fmt.Sprintf("%f out of range [-180, 180]", loc.Longitude),
		})
	}
	if !(loc.Latitude >= -90 && loc.Latitude <= 90) {
		v = append(v, Violation{
			Field:   field + ".latitude",
			Message: fmt.Sprintf("%f out of range [-90, 90]", loc.Latitude),
		})
	}
	return v
}
