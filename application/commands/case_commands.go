package commands

import (
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/utils"
)

// StartCaseCommand opens a new intake conversation for a driver.
// CaseID is generated by the caller so it can be returned without a read.
type StartCaseCommand struct {
	CaseID string                `json:"case_id" validate:"required,caseid"`
	Flow   string                `json:"flow"`
	Actor  valueobjects.Identity `json:"-" validate:"required"`
}

func (c StartCaseCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.Actor.IsAdmin() {
		return pkgerrors.NewForbiddenError("start a case")
	}
	return nil
}

// AdvanceCaseCommand moves the conversation by choosing an option or
// submitting text. Exactly one of Option and Input is set.
type AdvanceCaseCommand struct {
	CaseID string                `json:"case_id" validate:"required,caseid"`
	Option string                `json:"option" validate:"required_without=Input"`
	Input  *string               `json:"input,omitempty"`
	Actor  valueobjects.Identity `json:"-" validate:"required"`
}

func (c AdvanceCaseCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.Option != "" && c.Input != nil {
		errs := pkgerrors.NewValidationErrors()
		errs.Add("option", "option and input are mutually exclusive")
		return errs
	}
	return nil
}

// PostMessageCommand appends a direct message to an open case.
type PostMessageCommand struct {
	CaseID     string                `json:"case_id" validate:"required,caseid"`
	Text       string                `json:"text"`
	Attachment string                `json:"attachment" validate:"omitempty,url"`
	Actor      valueobjects.Identity `json:"-" validate:"required"`
}

func (c PostMessageCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CloseCaseCommand closes a case. Admin only.
type CloseCaseCommand struct {
	CaseID string                `json:"case_id" validate:"required,caseid"`
	Reason string                `json:"reason" validate:"max=500"`
	Actor  valueobjects.Identity `json:"-" validate:"required"`
}

func (c CloseCaseCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if !c.Actor.IsAdmin() {
		return pkgerrors.NewForbiddenError("close a case")
	}
	return nil
}

// ReopenCaseCommand reopens a closed case. Admin only.
type ReopenCaseCommand struct {
	CaseID string                `json:"case_id" validate:"required,caseid"`
	Actor  valueobjects.Identity `json:"-" validate:"required"`
}

func (c ReopenCaseCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if !c.Actor.IsAdmin() {
		return pkgerrors.NewForbiddenError("reopen a case")
	}
	return nil
}

// SetPriorityCommand changes the dashboard priority. Admin only.
type SetPriorityCommand struct {
	CaseID   string                `json:"case_id" validate:"required,caseid"`
	Priority string                `json:"priority" validate:"required,oneof=low medium high"`
	Actor    valueobjects.Identity `json:"-" validate:"required"`
}

func (c SetPriorityCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if !c.Actor.IsAdmin() {
		return pkgerrors.NewForbiddenError("set case priority")
	}
	return nil
}
