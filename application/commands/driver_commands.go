package commands

import (
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/utils"
)

// RegisterDriverCommand records a pending driver signup.
type RegisterDriverCommand struct {
	DriverID string `json:"driver_id" validate:"required,uuid"`
	Name     string `json:"name" validate:"required,notblank,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"max=32"`
	Company  string `json:"company" validate:"max=120"`
}

func (c RegisterDriverCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ApproveDriverCommand activates a pending registration. Admin only.
type ApproveDriverCommand struct {
	DriverID string                `json:"driver_id" validate:"required"`
	Actor    valueobjects.Identity `json:"-" validate:"required"`
}

func (c ApproveDriverCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if !c.Actor.IsAdmin() {
		return pkgerrors.NewForbiddenError("approve drivers")
	}
	return nil
}

// RejectDriverCommand declines a pending registration. Admin only.
type RejectDriverCommand struct {
	DriverID string                `json:"driver_id" validate:"required"`
	Reason   string                `json:"reason" validate:"max=500"`
	Actor    valueobjects.Identity `json:"-" validate:"required"`
}

func (c RejectDriverCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if !c.Actor.IsAdmin() {
		return pkgerrors.NewForbiddenError("reject drivers")
	}
	return nil
}
