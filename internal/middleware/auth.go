package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vidhost/backend/internal/logging"
	"github.com/vidhost/backend/internal/models"
)

// AccessTokenCookie names the cookie that carries the access token.
const AccessTokenCookie = "accessToken"

type userCtxKey struct{}

// Authenticator resolves an access token to the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

// ErrorResponder writes err to the client in the service's response format.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// RequireAuth rejects requests without a valid access token and attaches the sanitized
// user to the request context otherwise.
func RequireAuth(authenticator Authenticator, respond ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticator.Authenticate(r.Context(), AccessToken(r))
			if err != nil {
				respond(w, r, err)
				return
			}

			ctx := WithUser(r.Context(), user.Public())
			ctx = logging.With(ctx, "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken extracts the access token from the cookie or the bearer Authorization header.
func AccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, user models.PublicUser) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext returns the user attached by RequireAuth.
func UserFromContext(ctx context.Context) (models.PublicUser, bool) {
	user, ok := ctx.Value(userCtxKey{}).(models.PublicUser)
	return user, ok
}
