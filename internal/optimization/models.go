// Package optimization turns collection jobs and driver vehicles into capacitated
// vehicle routes by delegating sequencing to an external solver and rebuilding
// typed per-driver routes from its response.
package optimization

// Location is a WGS-84 coordinate.
type Location struct {
	Longitude float64
	Latitude  float64
}

// LonLat returns the location in [lon, lat] order as used by the solver.
func (l Location) LonLat() []float64 {
	return []float64{l.Longitude, l.Latitude}
}

// CollectionJob is one address that is due for collection.
// ID must be unique within a single run; it is passed through the solver opaquely.
type CollectionJob struct {
	ID       string
	Location Location
	Address  string
}

// DriverVehicle is a driver's vehicle for one run.
// Capacity is the number of collection stops before a depot visit is required.
type DriverVehicle struct {
	ID            string
	StartLocation Location
	Capacity      int
}

// DepotLocation is a fixed place where a vehicle can offload.
type DepotLocation struct {
	ID       string
	Location Location
	Address  string
}

// StopType distinguishes collection stops from depot stops.
type StopType string

const (
	// StopCollection is a visit to a customer address.
	StopCollection StopType = "COLLECTION"
	// StopDepot is a mid-route depot dump.
	StopDepot StopType = "DEPOT"
)

// RouteStop is a single visit in a driver's route.
// JobID is set only for collection stops.
type RouteStop struct {
	Type     StopType
	Location Location
	Address  string
	JobID    string
}

// DriverRoute is the ordered visiting sequence for one driver.
type DriverRoute struct {
	DriverID             string
	Stops                []RouteStop
	TotalDistanceMeters  *float64
	TotalDurationSeconds *float64

	// Geometry is the decoded route line, when the solver returned one.
	Geometry []Location
}

// CollectionStops returns the collection stops in visiting order.
func (r *DriverRoute) CollectionStops() []RouteStop {
	stops := make([]RouteStop, 0, len(r.Stops))
	for _, s := range r.Stops {
		if s.Type == StopCollection {
			stops = append(stops, s)
		}
	}
	return stops
}

// DailyOptimizationResult is the outcome of one optimization run.
// Every input job appears in exactly one route stop or in UnassignedJobs.
type DailyOptimizationResult struct {
	Routes               []DriverRoute
	UnassignedJobs       []CollectionJob
	TotalDistanceMeters  float64
	TotalDurationSeconds float64
}

// EmptyResult returns a result with no routes and no unassigned jobs.
func EmptyResult() *DailyOptimizationResult {
	return &DailyOptimizationResult{
		Routes:         []DriverRoute{},
		UnassignedJobs: []CollectionJob{},
	}
}
