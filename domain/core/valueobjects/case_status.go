package valueobjects

import "fmt"

// CaseStatus is open or closed. The only legal transitions are open->closed
// and closed->open.
type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "open"
	CaseStatusClosed CaseStatus = "closed"
)

func ParseCaseStatus(s string) (CaseStatus, error) {
	switch st := CaseStatus(s); st {
	case CaseStatusOpen, CaseStatusClosed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown case status %q", s)
	}
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s CaseStatus) CanTransitionTo(next CaseStatus) bool {
	return (s == CaseStatusOpen && next == CaseStatusClosed) ||
		(s == CaseStatusClosed && next == CaseStatusOpen)
}

func (s CaseStatus) String() string {
	return string(s)
}

// Priority ranks cases on the admin dashboard.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

func (p Priority) String() string {
	return string(p)
}
