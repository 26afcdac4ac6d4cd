package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/application/queries"
	"github.com/Skozial17/supportchat/application/queries/bus"
	"github.com/Skozial17/supportchat/application/services"
	"github.com/Skozial17/supportchat/domain/config"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// CaseQueryHandler serves case reads
type CaseQueryHandler struct {
	cases      ports.CaseRepository
	flows      ports.FlowCatalog
	gateway    ports.PersistenceGateway
	eventStore ports.EventStore
	limits     *config.DomainConfig
	logger     *zap.Logger
}

// NewCaseQueryHandler creates a new case query handler
func NewCaseQueryHandler(
	cases ports.CaseRepository,
	flows ports.FlowCatalog,
	gateway ports.PersistenceGateway,
	eventStore ports.EventStore,
	limits *config.DomainConfig,
	logger *zap.Logger,
) *CaseQueryHandler {
	if limits == nil {
		limits = config.DefaultDomainConfig()
	}
	return &CaseQueryHandler{
		cases:      cases,
		flows:      flows,
		gateway:    gateway,
		eventStore: eventStore,
		limits:     limits,
		logger:     logger,
	}
}

// Register binds the case queries on the bus
func (h *CaseQueryHandler) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.GetCaseQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return h.HandleGetCase(ctx, q.(queries.GetCaseQuery))
	})); err != nil {
		return err
	}
	if err := b.Register(queries.ListCasesQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return h.HandleListCases(ctx, q.(queries.ListCasesQuery))
	})); err != nil {
		return err
	}
	return b.Register(queries.GetCaseHistoryQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return h.HandleGetCaseHistory(ctx, q.(queries.GetCaseHistoryQuery))
	}))
}

// HandleGetCase loads the case and renders it for a participant
func (h *CaseQueryHandler) HandleGetCase(ctx context.Context, q queries.GetCaseQuery) (*queries.CaseView, error) {
	session, err := services.LoadSession(ctx, h.cases, h.flows, h.gateway, q.CaseID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(q.Actor) {
		// Other drivers' cases are reported as missing.
		return nil, pkgerrors.NewCaseNotFoundError(q.CaseID)
	}
	return NewCaseView(session), nil
}

// NewCaseView renders a session
func NewCaseView(session *aggregates.CaseSession) *queries.CaseView {
	view := &queries.CaseView{
		ID:          session.ID().String(),
		Flow:        session.Flow(),
		Title:       session.Title(),
		Status:      session.Status().String(),
		Priority:    session.Priority().String(),
		Driver:      session.Driver(),
		Cursor:      session.Cursor(),
		Completed:   session.IsCompleted(),
		Finalized:   session.IsFinalized(),
		CloseReason: session.CloseReason(),
		Opening:     session.Opening(),
		Messages:    session.Messages(),
		CreatedAt:   session.CreatedAt(),
		UpdatedAt:   session.UpdatedAt(),
		Version:     session.Version(),
	}
	if session.IsFinalized() {
		view.Description = session.Description()
	}
	if step, ok := session.CurrentStep(); ok && session.AcceptsActions() {
		view.CurrentStep = queries.NewStepView(step)
	}
	return view
}

// HandleListCases lists cases visible to the actor
func (h *CaseQueryHandler) HandleListCases(ctx context.Context, q queries.ListCasesQuery) (*queries.CaseListResult, error) {
	limit := q.Limit
	if limit == 0 {
		limit = h.limits.DefaultPageSize
	}
	if limit > h.limits.MaxPageSize {
		limit = h.limits.MaxPageSize
	}

	criteria := ports.CaseCriteria{
		Status: q.Status,
		Search: strings.TrimSpace(q.Search),
		Limit:  limit,
		Cursor: q.Cursor,
	}
	if !q.Actor.IsAdmin() {
		criteria.DriverID = q.Actor.UserID
	}

	page, err := h.cases.List(ctx, criteria)
	if err != nil {
		return nil, err
	}

	result := &queries.CaseListResult{
		Cases:      make([]queries.CaseSummary, 0, len(page.Cases)),
		NextCursor: page.NextCursor,
	}
	for _, snap := range page.Cases {
		result.Cases = append(result.Cases, queries.CaseSummary{
			ID:         snap.ID.String(),
			Title:      snap.Title,
			Status:     snap.Status.String(),
			Priority:   snap.Priority.String(),
			Flow:       snap.Flow,
			DriverID:   snap.Driver.UserID,
			DriverName: snap.Driver.DisplayName(),
			Company:    snap.Driver.Affiliation,
			Finalized:  snap.Finalized,
			CreatedAt:  snap.CreatedAt,
			UpdatedAt:  snap.UpdatedAt,
		})
	}
	return result, nil
}

// HandleGetCaseHistory returns the audit trail of a case
func (h *CaseQueryHandler) HandleGetCaseHistory(ctx context.Context, q queries.GetCaseHistoryQuery) (*queries.CaseHistoryResult, error) {
	if _, err := h.cases.Get(ctx, q.CaseID); err != nil {
		return nil, err
	}
	stored, err := h.eventStore.GetEvents(ctx, q.CaseID)
	if err != nil {
		return nil, err
	}
	return &queries.CaseHistoryResult{CaseID: q.CaseID, Events: stored}, nil
}
