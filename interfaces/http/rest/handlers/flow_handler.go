package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Skozial17/supportchat/application/queries"
)

// FlowHandler serves the loaded conversation graphs
type FlowHandler struct {
	base
}

// NewFlowHandler creates the flow handler
func NewFlowHandler(d Deps) *FlowHandler {
	return &FlowHandler{base: newBase(d)}
}

// ListFlows handles GET /flows
func (h *FlowHandler) ListFlows(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.ListFlowsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// GetFlow handles GET /flows/{name}
func (h *FlowHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetFlowQuery{Name: chi.URLParam(r, "name")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}
