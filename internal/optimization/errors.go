package optimization

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for optimization runs. The typed errors below unwrap to these.
var (
	// ErrValidation indicates malformed jobs, vehicles or depots.
	ErrValidation = errors.New("invalid optimization input")
	// ErrConfiguration indicates missing required configuration.
	ErrConfiguration = errors.New("missing configuration")
	// ErrNoCapacity indicates there are no vehicles to route.
	ErrNoCapacity = errors.New("no capacity available")
	// ErrSolver indicates the solver call failed or returned an unusable response.
	ErrSolver = errors.New("solver failure")
	// ErrDataIntegrity indicates the solver response does not match the request.
	ErrDataIntegrity = errors.New("solver response integrity violation")
)

// Violation describes a single invalid field.
type Violation struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in the input.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("validation failed (%d violations): %s", len(e.Violations), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ConfigurationError reports missing or unusable configuration.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NoCapacityError reports that no vehicle is available for a run.
type NoCapacityError struct {
	Message string
}

func (e *NoCapacityError) Error() string {
	return e.Message
}

func (e *NoCapacityError) Unwrap() error {
	return ErrNoCapacity
}

// SolverError reports a failed solver round trip.
// StatusCode is zero when no HTTP response was received.
type SolverError struct {
	Provider   string
	StatusCode int
	Body       string
	Message    string
	Err        error
}

func (e *SolverError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *SolverError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSolver, e.Err}
	}
	return []error{ErrSolver}
}

// DataIntegrityError reports a solver response referencing ids that were not
// in the request, or losing or duplicating jobs.
type DataIntegrityError struct {
	VehicleID string
	JobID     string
	Message   string
}

func (e *DataIntegrityError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.JobID != "" {
		b.WriteString(" job=" + e.JobID)
	}
	if e.VehicleID != "" {
		b.WriteString(" vehicle=" + e.VehicleID)
	}
	return b.String()
}

func (e *DataIntegrityError) Unwrap() error {
	return ErrDataIntegrity
}
