// Package schedule holds the persisted daily collection schedule and the
// read models for the contracts and drivers a run is built from.
package schedule

import (
	"strings"
	"time"

	"github.com/megabin/megabin/internal/optimization"
)

// DateLayout is the wire and storage format of a schedule date.
const DateLayout = "2006-01-02"

// Entry is one collection stop of a driver's day.
type Entry struct {
	ID            string    `json:"id"`
	ScheduledFor  time.Time `json:"scheduledFor"`
	DriverID      string    `json:"driverId"`
	AddressID     string    `json:"addressId"`
	RouteSequence int       `json:"routeSequence"`
	Collected     bool      `json:"collected"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HasProgress reports whether a driver has already worked on this entry.
func (e *Entry) HasProgress() bool {
	return e.Collected || strings.TrimSpace(e.Notes) != ""
}

// Contract is a recurring collection agreement for one address.
type Contract struct {
	ID                 string
	AddressID          string
	Address            string
	Location           optimization.Location
	DayOfWeek          time.Weekday
	Active             bool
	ApprovedExternally bool
}

// Schedulable reports whether the contract takes part in a run on day.
func (c *Contract) Schedulable(day time.Weekday) bool {
	return c.Active && c.ApprovedExternally && c.DayOfWeek == day
}

// Driver is a collection driver and their vehicle.
type Driver struct {
	ID           string
	Name         string
	HomeLocation optimization.Location
	Capacity     int
	Active       bool
}

// ContractSummary is the preview projection of a contract.
type ContractSummary struct {
	ContractID string                `json:"contractId"`
	AddressID  string                `json:"addressId"`
	Address    string                `json:"address"`
	Location   optimization.Location `json:"location"`
}

// Date truncates t to its calendar date, expressed as midnight UTC.
// Callers convert to the reference zone first.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekdayName is the storage form of a weekday ("monday").
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}
