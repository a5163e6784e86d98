package optimization

// jobAmount is the capacity each collection consumes.
const jobAmount = 1

// RequestOptions tunes the generated solver request.
type RequestOptions struct {
	// Profile is the routing profile (default: driving-car).
	Profile string
}

// BuildRequest translates jobs and vehicles into the solver wire format.
// Each vehicle ends at its assigned depot. No validation is performed here.
func BuildRequest(jobs []CollectionJob, vehicles []DriverVehicle, assignment map[string]DepotLocation, opts RequestOptions) *SolverRequest {
	profile := opts.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	req := &SolverRequest{
		Jobs:     make([]SolverJob, 0, len(jobs)),
		Vehicles: make([]SolverVehicle, 0, len(vehicles)),
		Options:  SolverOptions{G: true},
	}

	for _, j := range jobs {
		req.Jobs = append(req.Jobs, SolverJob{
			ID:       j.ID,
			Location: j.Location.LonLat(),
			Amount:   []int{jobAmount},
		})
	}

	for _, v := range vehicles {
		depot := assignment[v.ID]
		req.Vehicles = append(req.Vehicles, SolverVehicle{
			ID:       v.ID,
			Start:    v.StartLocation.LonLat(),
			End:      depot.Location.LonLat(),
			Capacity: []int{v.Capacity},
			Profile:  profile,
		})
	}

	return req
}
