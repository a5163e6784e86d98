package optimization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultProfile is the routing profile sent for every vehicle.
const DefaultProfile = "driving-car"

// StepType is the kind of a solver route step.
type StepType string

// Step kinds understood by Reconstruct.
const (
	StepStart StepType = "start"
	StepJob   StepType = "job"
	StepEnd   StepType = "end"
)

// ID is an identifier echoed back by the solver. Some solvers return numeric
// ids even when strings were sent, so both JSON forms are accepted.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// SolverRequest is the JSON document posted to the solver.
type SolverRequest struct {
	Jobs     []SolverJob     `json:"jobs"`
	Vehicles []SolverVehicle `json:"vehicles"`
	Options  SolverOptions   `json:"options"`
}

// SolverJob is one job entry; Location is [lon, lat].
type SolverJob struct {
	ID       string    `json:"id"`
	Location []float64 `json:"location"`
	Amount   []int     `json:"amount"`
}

// SolverVehicle is one vehicle entry; Start and End are [lon, lat].
type SolverVehicle struct {
	ID       string    `json:"id"`
	Start    []float64 `json:"start"`
	End      []float64 `json:"end"`
	Capacity []int     `json:"capacity"`
	Profile  string    `json:"profile"`
}

// SolverOptions holds solver flags. G requests route geometry and metrics.
type SolverOptions struct {
	G bool `json:"g"`
}

// SolverResponse is the decoded solver reply.
type SolverResponse struct {
	Code       *int               `json:"code"`
	Summary    *SolverSummary     `json:"summary"`
	Routes     []SolverRoute      `json:"routes"`
	Unassigned []SolverUnassigned `json:"unassigned"`
}

// SolverSummary carries aggregate metrics for all routes.
type SolverSummary struct {
	Cost     int64   `json:"cost"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// SolverRoute is the step sequence for one vehicle.
type SolverRoute struct {
	Vehicle  ID           `json:"vehicle"`
	Distance *float64     `json:"distance"`
	Duration *float64     `json:"duration"`
	Geometry string       `json:"geometry,omitempty"`
	Steps    []SolverStep `json:"steps"`
}

// SolverStep is a single step in a route.
type SolverStep struct {
	Type     StepType  `json:"type"`
	Job      *ID       `json:"job"`
	Location []float64 `json:"location"`
}

// SolverUnassigned is a job the solver could not place.
type SolverUnassigned struct {
	ID       ID        `json:"id"`
	Location []float64 `json:"location"`
}

// CheckShape verifies required fields so that protocol drift is caught before
// reconstruction starts.
func (r *SolverResponse) CheckShape() error {
	if r.Code == nil {
		return fmt.Errorf("missing field %q", "code")
	}
	if *r.Code != 0 {
		return fmt.Errorf("solver reported code %d", *r.Code)
	}
	for i, route := range r.Routes {
		if route.Vehicle == "" {
			return fmt.Errorf("routes[%d]: missing vehicle", i)
		}
		for j, step := range route.Steps {
			switch step.Type {
			case StepStart, StepEnd:
			case StepJob:
				if step.Job == nil || *step.Job == "" {
					return fmt.Errorf("routes[%d].steps[%d]: job step without job id", i, j)
				}
			default:
				return fmt.Errorf("routes[%d].steps[%d]: unknown step type %q", i, j, step.Type)
			}
			if step.Location != nil && len(step.Location) != 2 {
				return fmt.Errorf("routes[%d].steps[%d]: location must be [lon, lat]", i, j)
			}
		}
	}
	for i, u := range r.Unassigned {
		if u.ID == "" {
			return fmt.Errorf("unassigned[%d]: missing id", i)
		}
	}
	return nil
}

func locationFromLonLat(coords []float64) (Location, bool) {
	if len(coords) != 2 {
		return Location{}, false
	}
	return Location{Longitude: coords[0], Latitude: coords[1]}, true
}
