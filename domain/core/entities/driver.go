package entities

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Skozial17/supportchat/domain/events"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// DriverStatus tracks a registration through admin review
type DriverStatus string

const (
	DriverStatusPending  DriverStatus = "pending"
	DriverStatusActive   DriverStatus = "active"
	DriverStatusRejected DriverStatus = "rejected"
)

// Driver is a driver registration awaiting or past admin review.
type Driver struct {
	id           string
	name         string
	email        string
	phone        string
	company      string
	status       DriverStatus
	rejectReason string
	reviewedBy   string
	createdAt    time.Time
	reviewedAt   *time.Time
	version      int

	events []events.DomainEvent
}

// NewDriverRegistration creates a pending registration.
func NewDriverRegistration(id, name, email, phone, company string, now time.Time) (*Driver, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.NewValidationError("driver id cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, pkgerrors.NewValidationError("driver name cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, pkgerrors.NewValidationError("driver email is invalid")
	}

	d := &Driver{
		id:        id,
		name:      strings.TrimSpace(name),
		email:     strings.ToLower(strings.TrimSpace(email)),
		phone:     strings.TrimSpace(phone),
		company:   strings.TrimSpace(company),
		status:    DriverStatusPending,
		createdAt: now,
		version:   1,
	}
	d.addEvent(events.NewDriverRegistered(d.id, d.email, d.company, now))
	return d, nil
}

// ReconstructDriver rehydrates a stored registration.
func ReconstructDriver(id, name, email, phone, company string, status DriverStatus, rejectReason, reviewedBy string, createdAt time.Time, reviewedAt *time.Time, version int) *Driver {
	return &Driver{
		id:           id,
		name:         name,
		email:        email,
		phone:        phone,
		company:      company,
		status:       status,
		rejectReason: rejectReason,
		reviewedBy:   reviewedBy,
		createdAt:    createdAt,
		reviewedAt:   reviewedAt,
		version:      version,
	}
}

// Approve activates a pending registration.
func (d *Driver) Approve(reviewerID string, now time.Time) error {
	if d.status != DriverStatusPending {
		return pkgerrors.ErrDriverNotPending
	}
	d.status = DriverStatusActive
	d.review(reviewerID, now)
	d.addEvent(events.NewDriverApproved(d.id, reviewerID, d.version, now))
	return nil
}

// Reject declines a pending registration.
func (d *Driver) Reject(reviewerID, reason string, now time.Time) error {
	if d.status != DriverStatusPending {
		return pkgerrors.ErrDriverNotPending
	}
	d.status = DriverStatusRejected
	d.rejectReason = reason
	d.review(reviewerID, now)
	d.addEvent(events.NewDriverRejected(d.id, reviewerID, reason, d.version, now))
	return nil
}

func (d *Driver) review(reviewerID string, now time.Time) {
	d.reviewedBy = reviewerID
	d.reviewedAt = &now
	d.version++
}

// PublicStatus is what a driver sees when checking on their registration.
func (d *Driver) PublicStatus() string {
	switch d.status {
	case DriverStatusPending:
		return "pending"
	case DriverStatusActive:
		return "approved"
	default:
		return "unknown"
	}
}

func (d *Driver) ID() string             { return d.id }
func (d *Driver) Name() string           { return d.name }
func (d *Driver) Email() string          { return d.email }
func (d *Driver) Phone() string          { return d.phone }
func (d *Driver) Company() string        { return d.company }
func (d *Driver) Status() DriverStatus   { return d.status }
func (d *Driver) RejectReason() string   { return d.rejectReason }
func (d *Driver) ReviewedBy() string     { return d.reviewedBy }
func (d *Driver) CreatedAt() time.Time   { return d.createdAt }
func (d *Driver) ReviewedAt() *time.Time { return d.reviewedAt }
func (d *Driver) Version() int           { return d.version }

func (d *Driver) addEvent(event events.DomainEvent) {
	d.events = append(d.events, event)
}

// GetUncommittedEvents returns events raised since the last commit
func (d *Driver) GetUncommittedEvents() []events.DomainEvent {
	return d.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (d *Driver) MarkEventsAsCommitted() {
	d.events = nil
}
