package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/commands/bus"
	"github.com/Skozial17/supportchat/application/ports"
	querybus "github.com/Skozial17/supportchat/application/queries/bus"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/pkg/common"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// Deps are the collaborators every handler uses.
type Deps struct {
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Identity   ports.IdentityProvider
	Errors     *pkgerrors.ErrorHandler
	Logger     *zap.Logger
}

type base struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	identity   ports.IdentityProvider
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

func newBase(d Deps) base {
	return base{
		commandBus: d.CommandBus,
		queryBus:   d.QueryBus,
		identity:   d.Identity,
		errors:     d.Errors,
		logger:     d.Logger,
	}
}

// actor resolves the caller; on failure the response is already written.
func (h *base) actor(w http.ResponseWriter, r *http.Request) (valueobjects.Identity, bool) {
	id, err := h.identity.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return valueobjects.Identity{}, false
	}
	return id, true
}

// decode reads the JSON body into v; on failure the response is already written.
func (h *base) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v, common.DefaultMaxBodyBytes); err != nil {
		h.errors.HandleStatus(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := common.RespondJSON(w, status, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
