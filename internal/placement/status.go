// Package placement holds the entities of the placement workflow and the
// pure rules that govern them. Nothing here touches storage or locks.
package placement

import (
	"fmt"
	"strings"
)

// Status is the hiring stage of an application.
type Status string

const (
	StatusApplied            Status = "applied"
	StatusEligible           Status = "eligible"
	StatusShortlisted        Status = "shortlisted"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusOffered            Status = "offered"
	StatusJoined             Status = "joined"
	StatusRejected           Status = "rejected"
)

// forwardOrder is the total order of non-rejected stages. Rank is position+1.
var forwardOrder = []Status{
	StatusApplied,
	StatusEligible,
	StatusShortlisted,
	StatusInterviewScheduled,
	StatusOffered,
	StatusJoined,
}

// Statuses returns every known status, forward stages first.
func Statuses() []Status {
	return append(append([]Status{}, forwardOrder...), StatusRejected)
}

// Rank returns the position of s in the forward order (1-based).
// Rejected and unknown statuses have rank 0.
func (s Status) Rank() int {
	for i, st := range forwardOrder {
		if st == s {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusRejected || s.Rank() > 0
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusJoined || s == StatusRejected
}

// CheckTransition validates a move from one status to another.
// A target is legal when its rank is strictly greater than the current rank,
// or when it is Rejected and the current status is not terminal.
// The returned string explains a refusal and is empty on success.
func CheckTransition(from, to Status) (bool, string) {
	switch {
	case !from.Valid():
		return false, fmt.Sprintf("unknown current status %q", from)
	case !to.Valid():
		return false, fmt.Sprintf("unknown target status %q", to)
	case from == to:
		return false, "target equals current status"
	case from.Terminal():
		return false, fmt.Sprintf("%s is terminal", from)
	case to == StatusRejected:
		return true, ""
	case to.Rank() <= from.Rank():
		return false, "status cannot move backwards"
	}
	return true, ""
}

// ParseStatus normalizes user input ("Interview Scheduled", "InterviewScheduled",
// "interview-scheduled") into a Status.
func ParseStatus(raw string) (Status, error) {
	key := statusKey(raw)
	for _, st := range Statuses() {
		if statusKey(string(st)) == key {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown application status %q", raw)
}

func statusKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
