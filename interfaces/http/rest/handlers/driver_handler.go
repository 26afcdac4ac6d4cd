package handlers

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/commands"
	"github.com/Skozial17/supportchat/application/queries"
	"github.com/Skozial17/supportchat/pkg/auth"
	"github.com/Skozial17/supportchat/pkg/common"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// DriverHandler handles driver registration requests
type DriverHandler struct {
	base
	signupLimiter auth.RateLimiter
}

// NewDriverHandler creates a driver handler. signupLimiter throttles the
// public signup endpoint per client address and may be nil.
func NewDriverHandler(d Deps, signupLimiter auth.RateLimiter) *DriverHandler {
	return &DriverHandler{base: newBase(d), signupLimiter: signupLimiter}
}

// SignupRequest is a public driver registration
type SignupRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

type SignupResponse struct {
	DriverID string `json:"driver_id"`
	Status   string `json:"status"`
}

type RejectDriverRequest struct {
	Reason string `json:"reason"`
}

// Signup handles POST /drivers/signup
func (h *DriverHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if h.signupLimiter != nil {
		allowed, err := h.signupLimiter.Allow(r.Context(), clientAddr(r))
		if err != nil {
			h.logger.Warn("Signup limiter error", zap.Error(err))
		}
		if !allowed {
			h.errors.Handle(w, r, pkgerrors.ErrRateLimitExceeded)
			return
		}
	}

	var req SignupRequest
	if !h.decode(w, r, &req) {
		return
	}
	cmd := commands.RegisterDriverCommand{
		DriverID: uuid.New().String(),
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Company:  req.Company,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, SignupResponse{DriverID: cmd.DriverID, Status: "pending"})
}

// Status handles GET /drivers/status?email=...|id=...
func (h *DriverHandler) Status(w http.ResponseWriter, r *http.Request) {
	query := queries.GetDriverStatusQuery{
		DriverID: r.URL.Query().Get("id"),
		Email:    r.URL.Query().Get("email"),
	}
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// ListPending handles GET /admin/drivers/pending
func (h *DriverHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	page := common.ExtractPageParams(r, maxPageSize)
	result, err := h.queryBus.Ask(r.Context(), queries.ListPendingDriversQuery{Actor: actor, Limit: page.Limit})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// Approve handles POST /admin/drivers/{driverID}/approve
func (h *DriverHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	driverID := chi.URLParam(r, "driverID")
	if err := h.commandBus.Send(r.Context(), commands.ApproveDriverCommand{DriverID: driverID, Actor: actor}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, SignupResponse{DriverID: driverID, Status: "approved"})
}

// Reject handles POST /admin/drivers/{driverID}/reject
func (h *DriverHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req RejectDriverRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	driverID := chi.URLParam(r, "driverID")
	cmd := commands.RejectDriverCommand{DriverID: driverID, Reason: req.Reason, Actor: actor}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, SignupResponse{DriverID: driverID, Status: "rejected"})
}

// clientAddr is the caller's host; RealIP has already applied forwarding headers.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
