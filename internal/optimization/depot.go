package optimization

// AssignDepots maps every vehicle id to the depot closest to its start location.
// Ties go to the depot that appears first in depots.
func AssignDepots(vehicles []DriverVehicle, depots []DepotLocation) (map[string]DepotLocation, error) {
	if len(depots) == 0 {
		return nil, &ConfigurationError{Message: "no depot locations configured"}
	}

	assignment := make(map[string]DepotLocation, len(vehicles))
	for _, v := range vehicles {
		best := depots[0]
		bestDist := DistanceMeters(v.StartLocation, best.Location)
		for _, d := range depots[1:] {
			if dist := DistanceMeters(v.StartLocation, d.Location); dist < bestDist {
				best = d
				bestDist = dist
			}
		}
		assignment[v.ID] = best
	}
	return assignment, nil
}
