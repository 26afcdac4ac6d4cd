package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Skozial17/supportchat/application/commands"
	"github.com/Skozial17/supportchat/application/queries"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/pkg/common"
)

const maxPageSize = 100

// Streamer serves a case transcript over a WebSocket.
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, caseID string, seed []*entities.Message)
}

// CaseHandler handles case-related HTTP requests
type CaseHandler struct {
	base
	streamer Streamer
}

// NewCaseHandler creates a case handler. streamer may be nil where
// WebSockets are served by API Gateway instead.
func NewCaseHandler(d Deps, streamer Streamer) *CaseHandler {
	return &CaseHandler{base: newBase(d), streamer: streamer}
}

// StartCaseRequest selects the conversation graph; empty means the default.
type StartCaseRequest struct {
	Flow string `json:"flow"`
}

// AdvanceCaseRequest carries either a chosen option or free text.
type AdvanceCaseRequest struct {
	Option string  `json:"option"`
	Input  *string `json:"input"`
}

type PostMessageRequest struct {
	Text       string `json:"text"`
	Attachment string `json:"attachment"`
}

type CloseCaseRequest struct {
	Reason string `json:"reason"`
}

type SetPriorityRequest struct {
	Priority string `json:"priority"`
}

// StartCase handles POST /cases
func (h *CaseHandler) StartCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req StartCaseRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	cmd := commands.StartCaseCommand{
		CaseID: valueobjects.NewCaseID().String(),
		Flow:   req.Flow,
		Actor:  actor,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondCase(w, r, cmd.CaseID, actor, http.StatusCreated)
}

// GetCase handles GET /cases/{caseID}
func (h *CaseHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.respondCase(w, r, chi.URLParam(r, "caseID"), actor, http.StatusOK)
}

// ListCases handles GET /cases
func (h *CaseHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	page := common.ExtractPageParams(r, maxPageSize)
	query := queries.ListCasesQuery{
		Actor:  actor,
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  page.Limit,
		Cursor: page.Cursor,
	}
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// AdvanceCase handles POST /cases/{caseID}/advance
func (h *CaseHandler) AdvanceCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req AdvanceCaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	caseID := chi.URLParam(r, "caseID")
	cmd := commands.AdvanceCaseCommand{CaseID: caseID, Option: req.Option, Input: req.Input, Actor: actor}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondCase(w, r, caseID, actor, http.StatusOK)
}

// PostMessage handles POST /cases/{caseID}/messages
func (h *CaseHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req PostMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	caseID := chi.URLParam(r, "caseID")
	cmd := commands.PostMessageCommand{CaseID: caseID, Text: req.Text, Attachment: req.Attachment, Actor: actor}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondCase(w, r, caseID, actor, http.StatusCreated)
}

// CloseCase handles POST /cases/{caseID}/close
func (h *CaseHandler) CloseCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CloseCaseRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	caseID := chi.URLParam(r, "caseID")
	if err := h.commandBus.Send(r.Context(), commands.CloseCaseCommand{CaseID: caseID, Reason: req.Reason, Actor: actor}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondCase(w, r, caseID, actor, http.StatusOK)
}

// ReopenCase handles POST /cases/{caseID}/reopen
func (h *CaseHandler) ReopenCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	caseID := chi.URLParam(r, "caseID")
	if err := h.commandBus.Send(r.Context(), commands.ReopenCaseCommand{CaseID: caseID, Actor: actor}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondCase(w, r, caseID, actor, http.StatusOK)
}

// SetPriority handles PUT /cases/{caseID}/priority
func (h *CaseHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req SetPriorityRequest
	if !h.decode(w, r, &req) {
		return
	}
	caseID := chi.URLParam(r, "caseID")
	if err := h.commandBus.Send(r.Context(), commands.SetPriorityCommand{CaseID: caseID, Priority: req.Priority, Actor: actor}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondCase(w, r, caseID, actor, http.StatusOK)
}

// GetHistory handles GET /cases/{caseID}/history
func (h *CaseHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	result, err := h.queryBus.Ask(r.Context(), queries.GetCaseHistoryQuery{CaseID: chi.URLParam(r, "caseID"), Actor: actor})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// Stream handles GET /cases/{caseID}/stream. The case is read first so only
// participants can follow it; its transcript seeds the stream's dedup set.
func (h *CaseHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.streamer == nil {
		h.errors.HandleStatus(w, r, http.StatusNotImplemented, "transcript streaming is not served here")
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	view, err := h.getCase(r, chi.URLParam(r, "caseID"), actor)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.streamer.Serve(w, r, view.ID, view.Messages)
}

func (h *CaseHandler) getCase(r *http.Request, caseID string, actor valueobjects.Identity) (*queries.CaseView, error) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetCaseQuery{CaseID: caseID, Actor: actor})
	if err != nil {
		return nil, err
	}
	return result.(*queries.CaseView), nil
}

func (h *CaseHandler) respondCase(w http.ResponseWriter, r *http.Request, caseID string, actor valueobjects.Identity, status int) {
	view, err := h.getCase(r, caseID, actor)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, status, view)
}
