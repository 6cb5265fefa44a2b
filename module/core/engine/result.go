package engine

import "github.com/nandanugg/geofence/module/core/domain"

// Outcome explains what Process did with a report. Callers that only need
// the events can ignore it.
type Outcome string

const (
	OutcomeNoAssignment     Outcome = "no_assignment"
	OutcomeGeofenceNotFound Outcome = "geofence_not_found"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeStale            Outcome = "stale"
	OutcomeFirstReport      Outcome = "first_report"
	OutcomeReassigned       Outcome = "reassigned"
	OutcomeUnchanged        Outcome = "unchanged"
	OutcomeTransition       Outcome = "transition"
)

// Accepted reports whether the report passed the filters and updated device state.
func (o Outcome) Accepted() bool {
	switch o {
	case OutcomeFirstReport, OutcomeReassigned, OutcomeUnchanged, OutcomeTransition:
		return true
	}
	return false
}

type Result struct {
	Events     []domain.TransitionEvent
	Outcome    Outcome
	GeofenceID string
	// Inside is the containment computed for an accepted report.
	Inside bool
}
