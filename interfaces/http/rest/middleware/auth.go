package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/pkg/auth"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// Authenticator verifies the caller of every API request and stores the
// identity in the request context.
type Authenticator struct {
	validator    *auth.JWTValidator
	trustGateway bool
	ipLimiter    auth.RateLimiter
	userLimiter  auth.RateLimiter
	logger       *zap.Logger
}

// NewAuthenticator creates the auth middleware. With trustGateway set, requests
// marked by the Lambda adapter as authorized by API Gateway are accepted from
// their X-User-* headers. Either limiter may be nil.
func NewAuthenticator(validator *auth.JWTValidator, trustGateway bool, ipLimiter, userLimiter auth.RateLimiter, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		validator:    validator,
		trustGateway: trustGateway,
		ipLimiter:    ipLimiter,
		userLimiter:  userLimiter,
		logger:       logger,
	}
}

// Middleware rejects unauthenticated or throttled requests.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		if !a.allow(r, a.ipLimiter, clientIP) {
			respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		user, err := a.resolve(r)
		if err != nil {
			a.logger.Debug("Authentication failed",
				zap.Error(err),
				zap.String("ip", clientIP),
				zap.String("path", r.URL.Path),
			)
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				respondUnauthorized(w, "Token has expired")
			case errors.Is(err, auth.ErrInvalidSignature):
				respondUnauthorized(w, "Invalid token signature")
			case errors.Is(err, auth.ErrMissingToken):
				respondUnauthorized(w, "Missing authentication token")
			default:
				respondUnauthorized(w, "Invalid token")
			}
			return
		}

		if !a.allow(r, a.userLimiter, user.UserID) {
			respondWithError(w, http.StatusTooManyRequests, "User rate limit exceeded")
			return
		}

		ctx := auth.SetUserInContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) resolve(r *http.Request) (*auth.UserContext, error) {
	if a.trustGateway && r.Header.Get("X-API-Gateway-Authorized") == "true" {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			return nil, auth.ErrInvalidClaims
		}
		return &auth.UserContext{
			UserID:  userID,
			Email:   r.Header.Get("X-User-Email"),
			Name:    r.Header.Get("X-User-Name"),
			Role:    r.Header.Get("X-User-Role"),
			Company: r.Header.Get("X-User-Company"),
		}, nil
	}

	if a.validator == nil {
		return nil, auth.ErrInvalidToken
	}
	token := extractToken(r)
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	claims, err := a.validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return auth.NewUserContext(claims), nil
}

func (a *Authenticator) allow(r *http.Request, limiter auth.RateLimiter, key string) bool {
	if limiter == nil {
		return true
	}
	allowed, err := limiter.Allow(r.Context(), key)
	if err != nil {
		a.logger.Warn("Rate limiter error", zap.Error(err))
		return true
	}
	return allowed
}

// RequireRole only lets callers holding one of roles through.
func RequireRole(roles ...valueobjects.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.GetUserFromContext(r.Context())
			if err != nil {
				respondUnauthorized(w, "Unauthorized")
				return
			}
			for _, role := range roles {
				if user.Role == string(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondWithError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

// extractToken reads the bearer token from the Authorization header, the
// auth_token cookie or, for WebSocket upgrades, the token query parameter.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return header
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusUnauthorized, message)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	pkgerrors.WriteStatus(w, status, message)
}
