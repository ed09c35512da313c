package domain

import "strings"

// Status is the closed set of lead statuses. Unknown values coming from any
// source are mapped into this set before storage, never stored raw.
type Status string

const (
	StatusNew          Status = "new"
	StatusInProgress   Status = "in_progress"
	StatusFollowUp     Status = "follow_up"
	StatusNotAnswering Status = "not_answering"
	StatusClosed       Status = "closed"
	StatusWon          Status = "won"
	StatusLost         Status = "lost"
)

// ValidStatuses lists the closed status set in a stable order.
var ValidStatuses = []Status{
	StatusNew, StatusInProgress, StatusFollowUp,
	StatusNotAnswering, StatusClosed, StatusWon, StatusLost,
}

// statusSynonyms collapses source-specific status vocabulary into the closed
// set. The table is part of the observable contract.
var statusSynonyms = map[string]Status{
	"new":            StatusNew,
	"open":           StatusNew,
	"in_progress":    StatusInProgress,
	"in progress":    StatusInProgress,
	"inprogress":     StatusInProgress,
	"contacted":      StatusInProgress,
	"working":        StatusInProgress,
	"follow_up":      StatusFollowUp,
	"follow up":      StatusFollowUp,
	"followup":       StatusFollowUp,
	"callback":       StatusFollowUp,
	"qualified":      StatusFollowUp,
	"proposal":       StatusFollowUp,
	"negotiation":    StatusFollowUp,
	"not_answering":  StatusNotAnswering,
	"not answering":  StatusNotAnswering,
	"no_answer":      StatusNotAnswering,
	"no answer":      StatusNotAnswering,
	"not_answered":   StatusNotAnswering,
	"unreachable":    StatusNotAnswering,
	"closed":         StatusClosed,
	"won":            StatusWon,
	"closed_won":     StatusWon,
	"closed won":     StatusWon,
	"lost":           StatusLost,
	"closed_lost":    StatusLost,
	"closed lost":    StatusLost,
	"disqualified":   StatusLost,
}

// MapToValidStatus maps any free-form status string into the closed set.
// Empty input means a brand-new lead; unrecognized non-empty input falls back
// to in_progress rather than being rejected.
func MapToValidStatus(raw string) Status {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return StatusNew
	}
	if status, ok := statusSynonyms[normalized]; ok {
		return status
	}
	return StatusInProgress
}

// AdvanceStatus returns the status a lead should carry after an identity
// match refreshed it. A new lead moves one step toward active engagement;
// every other status is left untouched, so a status is never regressed.
func AdvanceStatus(current Status) Status {
	if current == StatusNew {
		return StatusInProgress
	}
	return current
}

// IsValidStatus reports whether s is a member of the closed set.
func IsValidStatus(s Status) bool {
	for _, valid := range ValidStatuses {
		if s == valid {
			return true
		}
	}
	return false
}
