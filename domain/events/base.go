package events

import (
	"time"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypeCaseStarted         = "case.started"
	TypeMessageAppended     = "message.appended"
	TypeCaseFinalized       = "case.finalized"
	TypeCaseClosed          = "case.closed"
	TypeCaseReopened        = "case.reopened"
	TypeCasePriorityChanged = "case.priority_changed"
	TypeDriverRegistered    = "driver.registered"
	TypeDriverApproved      = "driver.approved"
	TypeDriverRejected      = "driver.rejected"
)

func newBase(aggregateID, eventType string, version int, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     version,
	}
}

// Case Events

// CaseStarted is raised when a driver opens a new intake conversation
type CaseStarted struct {
	BaseEvent
	CaseID   valueobjects.CaseID `json:"case_id"`
	DriverID string              `json:"driver_id"`
	Flow     string              `json:"flow"`
}

// NewCaseStarted creates the event for a session opened on a flow
func NewCaseStarted(caseID valueobjects.CaseID, driverID, flow string, version int, timestamp time.Time) CaseStarted {
	return CaseStarted{
		BaseEvent: newBase(caseID.String(), TypeCaseStarted, version, timestamp),
		CaseID:    caseID,
		DriverID:  driverID,
		Flow:      flow,
	}
}

// MessageAppended is raised for every message the store confirmed
type MessageAppended struct {
	BaseEvent
	CaseID    valueobjects.CaseID     `json:"case_id"`
	MessageID string                  `json:"message_id"`
	Sender    valueobjects.SenderRole `json:"sender"`
	SenderID  string                  `json:"sender_id,omitempty"`
	Text      string                  `json:"text"`
	DriverID  string                  `json:"driver_id"`
}

// NewMessageAppended creates the event for a message stored on a case
func NewMessageAppended(caseID valueobjects.CaseID, messageID string, sender valueobjects.SenderRole, senderID, text, driverID string, version int, timestamp time.Time) MessageAppended {
	return MessageAppended{
		BaseEvent: newBase(caseID.String(), TypeMessageAppended, version, timestamp),
		CaseID:    caseID,
		MessageID: messageID,
		Sender:    sender,
		SenderID:  senderID,
		Text:      text,
		DriverID:  driverID,
	}
}

// CaseFinalized is raised once, when the intake conversation has produced a case
type CaseFinalized struct {
	BaseEvent
	CaseID      valueobjects.CaseID   `json:"case_id"`
	DriverID    string                `json:"driver_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    valueobjects.Priority `json:"priority"`
}

// NewCaseFinalized creates the event for a case record raised from a session
func NewCaseFinalized(caseID valueobjects.CaseID, driverID, title, description string, priority valueobjects.Priority, version int, timestamp time.Time) CaseFinalized {
	return CaseFinalized{
		BaseEvent:   newBase(caseID.String(), TypeCaseFinalized, version, timestamp),
		CaseID:      caseID,
		DriverID:    driverID,
		Title:       title,
		Description: description,
		Priority:    priority,
	}
}

// CaseClosed is raised when staff close a case
type CaseClosed struct {
	BaseEvent
	CaseID  valueobjects.CaseID `json:"case_id"`
	Reason  string              `json:"reason"`
	ActorID string              `json:"actor_id"`
}

// NewCaseClosed creates the event for a closed case
func NewCaseClosed(caseID valueobjects.CaseID, reason, actorID string, version int, timestamp time.Time) CaseClosed {
	return CaseClosed{
		BaseEvent: newBase(caseID.String(), TypeCaseClosed, version, timestamp),
		CaseID:    caseID,
		Reason:    reason,
		ActorID:   actorID,
	}
}

// CaseReopened is raised when a closed case is opened again
type CaseReopened struct {
	BaseEvent
	CaseID  valueobjects.CaseID `json:"case_id"`
	ActorID string              `json:"actor_id"`
}

// NewCaseReopened creates the event for a reopened case
func NewCaseReopened(caseID valueobjects.CaseID, actorID string, version int, timestamp time.Time) CaseReopened {
	return CaseReopened{
		BaseEvent: newBase(caseID.String(), TypeCaseReopened, version, timestamp),
		CaseID:    caseID,
		ActorID:   actorID,
	}
}

type CasePriorityChanged struct {
	BaseEvent
	CaseID      valueobjects.CaseID   `json:"case_id"`
	OldPriority valueobjects.Priority `json:"old_priority"`
	NewPriority valueobjects.Priority `json:"new_priority"`
}

// NewCasePriorityChanged creates the event for a priority change
func NewCasePriorityChanged(caseID valueobjects.CaseID, oldPriority, newPriority valueobjects.Priority, version int, timestamp time.Time) CasePriorityChanged {
	return CasePriorityChanged{
		BaseEvent:   newBase(caseID.String(), TypeCasePriorityChanged, version, timestamp),
		CaseID:      caseID,
		OldPriority: oldPriority,
		NewPriority: newPriority,
	}
}

// Driver Events

type DriverRegistered struct {
	BaseEvent
	DriverID string `json:"driver_id"`
	Email    string `json:"email"`
	Company  string `json:"company"`
}

// NewDriverRegistered creates the event for a driver signup
func NewDriverRegistered(driverID, email, company string, timestamp time.Time) DriverRegistered {
	return DriverRegistered{
		BaseEvent: newBase(driverID, TypeDriverRegistered, 1, timestamp),
		DriverID:  driverID,
		Email:     email,
		Company:   company,
	}
}

// DriverReviewed covers both approval and rejection; EventType tells them apart.
type DriverReviewed struct {
	BaseEvent
	DriverID   string `json:"driver_id"`
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason,omitempty"`
}

// NewDriverApproved creates the review event for an approved driver
func NewDriverApproved(driverID, reviewerID string, version int, timestamp time.Time) DriverReviewed {
	return DriverReviewed{
		BaseEvent:  newBase(driverID, TypeDriverApproved, version, timestamp),
		DriverID:   driverID,
		ReviewerID: reviewerID,
	}
}

// NewDriverRejected creates the review event for a rejected driver
func NewDriverRejected(driverID, reviewerID, reason string, version int, timestamp time.Time) DriverReviewed {
	return DriverReviewed{
		BaseEvent:  newBase(driverID, TypeDriverRejected, version, timestamp),
		DriverID:   driverID,
		ReviewerID: reviewerID,
		Reason:     reason,
	}
}
