package models

import (
	"time"

	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/schedule"
)

// OptimizationResult is the response of POST /v1/admin/schedules:optimize.
type OptimizationResult struct {
	Date                 Date            `json:"date"`
	Routes               []DriverRoute   `json:"routes"`
	UnassignedJobs       []CollectionJob `json:"unassignedJobs"`
	TotalDistanceMeters  float64         `json:"totalDistanceMeters"`
	TotalDurationSeconds float64         `json:"totalDurationSeconds"`
}

// DriverRoute is one driver's ordered stops.
type DriverRoute struct {
	DriverID             string      `json:"driverId"`
	Stops                []RouteStop `json:"stops"`
	TotalDistanceMeters  *float64    `json:"totalDistanceMeters,omitempty"`
	TotalDurationSeconds *float64    `json:"totalDurationSeconds,omitempty"`
	Geometry             []Location  `json:"geometry,omitempty"`
}

// RouteStop is a collection or depot visit.
type RouteStop struct {
	Type     string   `json:"type"`
	Location Location `json:"location"`
	Address  string   `json:"address,omitempty"`
	JobID    string   `json:"jobId,omitempty"`
}

// CollectionJob is a job the solver could not place.
type CollectionJob struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
	Address  string   `json:"address,omitempty"`
}

// SchedulePreview is the response of GET /v1/admin/schedules:preview.
type SchedulePreview struct {
	TargetDate               Date              `json:"targetDate"`
	DayOfWeek                string            `json:"dayOfWeek"`
	ActiveDriverCount        int               `json:"activeDriverCount"`
	ExistingCollectionsCount int               `json:"existingCollectionsCount"`
	ScheduleContracts        []ContractSummary `json:"scheduleContracts"`
}

// ContractSummary is a contract due on the previewed date.
type ContractSummary struct {
	ContractID string   `json:"contractId"`
	AddressID  string   `json:"addressId"`
	Address    string   `json:"address"`
	Location   Location `json:"location"`
}

// Schedule is the response of GET /v1/admin/schedules/{date}.
type Schedule struct {
	Date    Date            `json:"date"`
	Entries []ScheduleEntry `json:"entries"`
}

// ScheduleEntry is one persisted collection.
type ScheduleEntry struct {
	ID            string    `json:"id"`
	DriverID      string    `json:"driverId"`
	AddressID     string    `json:"addressId"`
	RouteSequence int       `json:"routeSequence"`
	Collected     bool      `json:"collected"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     Timestamp `json:"createdAt"`
}

// NewOptimizationResult converts a run result for the API.
func NewOptimizationResult(date time.Time, r *optimization.DailyOptimizationResult) OptimizationResult {
	out := OptimizationResult{
		Date:                 Date(date),
		Routes:               make([]DriverRoute, 0, len(r.Routes)),
		UnassignedJobs:       make([]CollectionJob, 0, len(r.UnassignedJobs)),
		TotalDistanceMeters:  r.TotalDistanceMeters,
		TotalDurationSeconds: r.TotalDurationSeconds,
	}
	for _, route := range r.Routes {
		dr := DriverRoute{
			DriverID:             route.DriverID,
			Stops:                make([]RouteStop, 0, len(route.Stops)),
			TotalDistanceMeters:  route.TotalDistanceMeters,
			TotalDurationSeconds: route.TotalDurationSeconds,
		}
		for _, s := range route.Stops {
			dr.Stops = append(dr.Stops, RouteStop{
				Type:     string(s.Type),
				Location: newLocation(s.Location),
				Address:  s.Address,
				JobID:    s.JobID,
			})
		}
		for _, p := range route.Geometry {
			dr.Geometry = append(dr.Geometry, newLocation(p))
		}
		out.Routes = append(out.Routes, dr)
	}
	for _, j := range r.UnassignedJobs {
		out.UnassignedJobs = append(out.UnassignedJobs, CollectionJob{
			ID:       j.ID,
			Location: newLocation(j.Location),
			Address:  j.Address,
		})
	}
	return out
}

// NewSchedulePreview converts a preview for the API.
func NewSchedulePreview(p *dailyroute.Preview) SchedulePreview {
	out := SchedulePreview{
		TargetDate:               Date(p.TargetDate),
		DayOfWeek:                p.DayOfWeek,
		ActiveDriverCount:        p.ActiveDriverCount,
		ExistingCollectionsCount: p.ExistingCollectionsCount,
		ScheduleContracts:        make([]ContractSummary, 0, len(p.ScheduleContracts)),
	}
	for _, c := range p.ScheduleContracts {
		out.ScheduleContracts = append(out.ScheduleContracts, ContractSummary{
			ContractID: c.ContractID,
			AddressID:  c.AddressID,
			Address:    c.Address,
			Location:   newLocation(c.Location),
		})
	}
	return out
}

// NewSchedule converts persisted entries for the API.
func NewSchedule(date time.Time, entries []schedule.Entry) Schedule {
	out := Schedule{
		Date:    Date(date),
		Entries: make([]ScheduleEntry, 0, len(entries)),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, ScheduleEntry{
			ID:            e.ID,
			DriverID:      e.DriverID,
			AddressID:     e.AddressID,
			RouteSequence: e.RouteSequence,
			Collected:     e.Collected,
			Notes:         e.Notes,
			CreatedAt:     Timestamp(e.CreatedAt),
		})
	}
	return out
}

func newLocation(l optimization.Location) Location {
	return Location{Longitude: l.Longitude, Latitude: l.Latitude}
}
