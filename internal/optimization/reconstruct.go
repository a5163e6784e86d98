package optimization

import (
	"fmt"

	"github.com/megabin/megabin/pkg/polyline"
)

// Reconstruct rebuilds typed driver routes from a solver response.
//
// Start steps are dropped. Job steps become collection stops. An end step
// becomes a depot stop only when a job step follows it later in the same route;
// the final end step is the implicit return to the depot. Routes without job
// steps are discarded. Every job in jobs must end up in exactly one route or in
// the unassigned list, otherwise a *DataIntegrityError is returned.
func Reconstruct(
	resp *SolverResponse,
	jobs []CollectionJob,
	vehicles []DriverVehicle,
	depots []DepotLocation,
	assignment map[string]DepotLocation,
) (*DailyOptimizationResult, error) {
	jobByID := make(map[string]CollectionJob, len(jobs))
	for _, j := range jobs {
		jobByID[j.ID] = j
	}
	knownVehicles := make(map[string]bool, len(vehicles))
	for _, v := range vehicles {
		knownVehicles[v.ID] = true
	}

	result := EmptyResult()
	placed := make(map[string]bool, len(jobs))

	for i := range resp.Routes {
		sr := &resp.Routes[i]
		vehicleID := string(sr.Vehicle)
		if !knownVehicles[vehicleID] {
			return nil, &DataIntegrityError{
				VehicleID: vehicleID,
				Message:   "solver route references unknown vehicle",
			}
		}

		route, err := rebuildRoute(sr, vehicleID, jobByID, depots, assignment[vehicleID], placed)
		if err != nil {
			return nil, err
		}
		if len(route.Stops) == 0 {
			continue
		}
		result.Routes = append(result.Routes, route)
	}

	for _, u := range resp.Unassigned {
		id := string(u.ID)
		job, ok := jobByID[id]
		if !ok {
			return nil, &DataIntegrityError{JobID: id, Message: "unassigned entry references unknown job"}
		}
		if placed[id] {
			return nil, &DataIntegrityError{JobID: id, Message: "job reported more than once"}
		}
		placed[id] = true
		result.UnassignedJobs = append(result.UnassignedJobs, job)
	}

	for _, j := range jobs {
		if !placed[j.ID] {
			return nil, &DataIntegrityError{JobID: j.ID, Message: "job missing from solver response"}
		}
	}

	if resp.Summary != nil {
		result.TotalDistanceMeters = resp.Summary.Distance
		result.TotalDurationSeconds = resp.Summary.Duration
	}

	return result, nil
}

func rebuildRoute(
	sr *SolverRoute,
	vehicleID string,
	jobByID map[string]CollectionJob,
	depots []DepotLocation,
	assigned DepotLocation,
	placed map[string]bool,
) (DriverRoute, error) {
	route := DriverRoute{
		DriverID:             vehicleID,
		Stops:                []RouteStop{},
		TotalDistanceMeters:  sr.Distance,
		TotalDurationSeconds: sr.Duration,
	}

	lastJob := -1
	for i, step := range sr.Steps {
		if step.Type == StepJob {
			lastJob = i
		}
	}
	if lastJob < 0 {
		return route, nil
	}

	for i, step := range sr.Steps {
		switch step.Type {
		case StepStart:
			continue

		case StepJob:
			var id string
			if step.Job != nil {
				id = string(*step.Job)
			}
			job, ok := jobByID[id]
			if !ok {
				return route, &DataIntegrityError{
					VehicleID: vehicleID,
					JobID:     id,
					Message:   "solver step references unknown job",
				}
			}
			if placed[id] {
				return route, &DataIntegrityError{
					VehicleID: vehicleID,
					JobID:     id,
					Message:   "job reported more than once",
				}
			}
			placed[id] = true
			route.Stops = append(route.Stops, RouteStop{
				Type:     StopCollection,
				Location: job.Location,
				Address:  job.Address,
				JobID:    job.ID,
			})

		case StepEnd:
			if i > lastJob {
				continue
			}
			// A dump only makes sense after at least one collection since the
			// previous dump.
			if n := len(route.Stops); n == 0 || route.Stops[n-1].Type == StopDepot {
				continue
			}
			depot := assigned
			if loc, ok := locationFromLonLat(step.Location); ok {
				depot = nearestDepot(loc, depots, assigned)
				depot.Location = loc
			}
			route.Stops = append(route.Stops, RouteStop{
				Type:     StopDepot,
				Location: depot.Location,
				Address:  depot.Address,
			})
		}
	}

	if sr.Geometry != "" {
		points, err := polyline.Decode(sr.Geometry)
		if err != nil {
			return route, &SolverError{
				Message: fmt.Sprintf("malformed geometry for vehicle %s", vehicleID),
				Err:     err,
			}
		}
		route.Geometry = make([]Location, 0, len(points))
		for _, p := range points {
			route.Geometry = append(route.Geometry, Location{Longitude: p.Lon, Latitude: p.Lat})
		}
	}

	return route, nil
}

// nearestDepot resolves the configured depot a step location refers to.
func nearestDepot(loc Location, depots []DepotLocation, fallback DepotLocation) DepotLocation {
	if len(depots) == 0 {
		return fallback
	}
	best := depots[0]
	bestDist := DistanceMeters(loc, best.Location)
	for _, d := range depots[1:] {
		if dist := DistanceMeters(loc, d.Location); dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best
}
