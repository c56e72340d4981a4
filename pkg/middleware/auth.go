package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/logger"
)

type contextKeyType string

const (
	userIDKey    contextKeyType = "user_id"
	principalKey contextKeyType = "principal"
)

// TokenExtractor pulls a raw credential out of a request. It returns "" when
// none was supplied.
type TokenExtractor func(r *http.Request) string

// CookieThenBearer reads the named cookie first and falls back to the
// Authorization header. A case-insensitive "Bearer" scheme is stripped from
// the header value; a scheme with no credential yields "".
func CookieThenBearer(cookieName string) TokenExtractor {
	return func(r *http.Request) string {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
		h := strings.TrimSpace(r.Header.Get("Authorization"))
		scheme, rest, _ := strings.Cut(h, " ")
		if strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
		return h
	}
}

// Resolver turns a raw token into the subject ID and the principal that
// handlers will see. AppErrors with a 4xx status are rendered as 401; any
// other error is an internal failure.
type Resolver func(ctx context.Context, token string) (subjectID string, principal any, err error)

// Authenticate rejects requests without a resolvable credential. On success
// the subject ID and principal are stored in the request context and the
// request-scoped logger gains a user_id attribute.
func Authenticate(extract TokenExtractor, resolve Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extract(r)
			if token == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("unauthorized request"), nil)
				return
			}

			subjectID, principal, err := resolve(r.Context(), token)
			if err != nil {
				var appErr *apperrors.AppError
				if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError &&
					appErr.Status != http.StatusUnauthorized {
					err = apperrors.Unauthorized("invalid access token")
				}
				httputil.WriteError(w, r, err, nil)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, subjectID)
			ctx = context.WithValue(ctx, principalKey, principal)
			ctx = logger.WithUserID(ctx, subjectID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", subjectID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated subject ID.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// PrincipalFromContext returns the principal stored by Authenticate if it
// has type T.
func PrincipalFromContext[T any](ctx context.Context) (T, bool) {
	p, ok := ctx.Value(principalKey).(T)
	return p, ok
}

// WithPrincipal stores a subject ID and principal in ctx the same way
// Authenticate does. Tests use it to bypass token resolution.
func WithPrincipal(ctx context.Context, subjectID string, principal any) context.Context {
	ctx = context.WithValue(ctx, userIDKey, subjectID)
	return context.WithValue(ctx, principalKey, principal)
}
