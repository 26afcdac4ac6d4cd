package queries

import (
	"time"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/conversation"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/utils"
)

// GetCaseQuery reads one case with its transcript
type GetCaseQuery struct {
	CaseID string                `validate:"required,caseid"`
	Actor  valueobjects.Identity `validate:"required"`
}

func (q GetCaseQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// CacheKey is per actor since the result is authorized per actor.
func (q GetCaseQuery) CacheKey() string {
	return ports.CaseCacheKeyPrefix(q.CaseID) + q.Actor.UserID
}

// CaseView is a case as rendered to drivers and admins
type CaseView struct {
	ID          string                `json:"id"`
	Flow        string                `json:"flow"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	Status      string                `json:"status"`
	Priority    string                `json:"priority"`
	Driver      valueobjects.Identity `json:"driver"`
	Cursor      string                `json:"cursor"`
	CurrentStep *StepView             `json:"current_step,omitempty"`
	Completed   bool                  `json:"completed"`
	Finalized   bool                  `json:"finalized"`
	CloseReason string                `json:"close_reason,omitempty"`
	Opening     *entities.Message     `json:"opening"`
	Messages    []*entities.Message   `json:"messages"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Version     int                   `json:"version"`
}

// StepView is the step awaiting the driver's action
type StepView struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options,omitempty"`
	RequiresInput bool     `json:"requires_input"`
	Placeholder   string   `json:"placeholder,omitempty"`
}

// NewStepView projects a graph step without its routing table
func NewStepView(step conversation.Step) *StepView {
	return &StepView{
		ID:            step.ID,
		Prompt:        step.Prompt,
		Options:       step.Options,
		RequiresInput: step.RequiresInput,
		Placeholder:   step.Placeholder,
	}
}

// ListCasesQuery lists cases. Drivers only ever see their own.
type ListCasesQuery struct {
	Actor  valueobjects.Identity `validate:"required"`
	Status string                `validate:"omitempty,oneof=open closed"`
	Search string                `validate:"max=200"`
	Limit  int                   `validate:"gte=0,lte=100"`
	Cursor string
}

func (q ListCasesQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// CaseSummary is one row of a case listing
type CaseSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	Flow       string    `json:"flow"`
	DriverID   string    `json:"driver_id"`
	DriverName string    `json:"driver_name"`
	Company    string    `json:"company,omitempty"`
	Finalized  bool      `json:"finalized"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CaseListResult is a page of case summaries
type CaseListResult struct {
	Cases      []CaseSummary `json:"cases"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// GetCaseHistoryQuery reads the audit trail of a case. Admin only.
type GetCaseHistoryQuery struct {
	CaseID string                `validate:"required,caseid"`
	Actor  valueobjects.Identity `validate:"required"`
}

func (q GetCaseHistoryQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return err
	}
	if !q.Actor.IsAdmin() {
		return pkgerrors.NewForbiddenError("read case history")
	}
	return nil
}

// CaseHistoryResult lists stored events oldest first
type CaseHistoryResult struct {
	CaseID string              `json:"case_id"`
	Events []ports.StoredEvent `json:"events"`
}
