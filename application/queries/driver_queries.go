package queries

import (
	"time"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/utils"
)

// ListPendingDriversQuery lists registrations awaiting review. Admin only.
type ListPendingDriversQuery struct {
	Actor valueobjects.Identity `validate:"required"`
	Limit int                   `validate:"gte=0,lte=100"`
}

func (q ListPendingDriversQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return err
	}
	if !q.Actor.IsAdmin() {
		return pkgerrors.NewForbiddenError("list driver registrations")
	}
	return nil
}

// DriverView is a registration as shown to admins
type DriverView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone,omitempty"`
	Company    string     `json:"company,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

type DriverListResult struct {
	Drivers []DriverView `json:"drivers"`
}

// GetDriverStatusQuery reports where a registration stands, by id or email.
type GetDriverStatusQuery struct {
	DriverID string
	Email    string `validate:"required_without=DriverID,omitempty,email"`
}

func (q GetDriverStatusQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// DriverStatusResult is pending, approved or unknown
type DriverStatusResult struct {
	Status string `json:"status"`
}
