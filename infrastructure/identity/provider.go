// Package identity resolves the caller from the verified request identity.
package identity

import (
	"context"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/pkg/auth"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// ContextProvider reads the identity the auth middleware put in the context.
type ContextProvider struct{}

// NewContextProvider creates a provider reading the authenticated user from the request context
func NewContextProvider() *ContextProvider {
	return &ContextProvider{}
}

// CurrentUser returns the caller, or an unauthorized error when the request
// carried no verified identity.
func (ContextProvider) CurrentUser(ctx context.Context) (valueobjects.Identity, error) {
	user, err := auth.GetUserFromContext(ctx)
	if err != nil {
		return valueobjects.Identity{}, pkgerrors.NewUnauthorizedError("authentication required")
	}
	role, err := valueobjects.ParseRole(user.Role)
	if err != nil {
		return valueobjects.Identity{}, pkgerrors.NewForbiddenError("unknown role " + user.Role)
	}
	return valueobjects.Identity{
		UserID:      user.UserID,
		Role:        role,
		Email:       user.Email,
		Name:        user.Name,
		Affiliation: user.Company,
	}, nil
}
