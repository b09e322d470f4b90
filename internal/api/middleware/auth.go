package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dom/auth-server/internal/token"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	SessionIDKey contextKey = "sessionID"
)

const AccessTokenCookie = "accessToken"

// Authenticator verifies access tokens.
type Authenticator interface {
	Authenticate(accessToken string) (*token.Claims, error)
}

// ErrorWriter renders a failed authentication.
type ErrorWriter func(w http.ResponseWriter, err error)

// AccessToken reads the access token from its cookie, falling back to a bearer header.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(value)
	}
	return ""
}

func Auth(auth Authenticator, log logrus.FieldLogger, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.Authenticate(AccessToken(r))
			if err != nil {
				log.WithError(err).WithField("path", r.URL.Path).Debug("rejected access token")
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func GetSessionID(ctx context.Context) (uuid.UUID, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(uuid.UUID)
	return sessionID, ok
}
