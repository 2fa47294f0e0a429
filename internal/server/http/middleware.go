package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/dmitrijs2005/fileshare/internal/logging"
	"github.com/dmitrijs2005/fileshare/internal/server/auth"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const (
	userIDKey   ctxKey = "userID"
	identityKey ctxKey = "identity"
)

// identity carries the authenticated user id back up to RequestLogging.
type identity struct {
	userID string
}

// UserIDFromContext returns the caller id stored by Authenticate, or "".
func UserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userIDKey).(string); ok {
		return s
	}
	return ""
}

// WithUserID stores the caller id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Authenticate requires an "Authorization: Bearer <token>" header signed with
// secret and puts the token's user id into the request context.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeJSONStatus(w, http.StatusUnauthorized, ErrorResponse{Error: "missing token"})
				return
			}

			userID, err := auth.GetUserIDFromToken(strings.TrimSpace(token), secret)
			if err != nil {
				msg := common.ErrInvalidToken.Error()
				if errors.Is(err, common.ErrTokenExpired) {
					msg = common.ErrTokenExpired.Error()
				}
				writeJSONStatus(w, http.StatusUnauthorized, ErrorResponse{Error: msg})
				return
			}

			if id, ok := r.Context().Value(identityKey).(*identity); ok {
				id.userID = userID
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RateLimit rejects callers that exceed their token bucket with 429. Callers
// are keyed by user id when authenticated and by client IP otherwise.
func RateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + getClientIP(r)
			if userID := UserIDFromContext(r.Context()); userID != "" {
				key = "user:" + userID
			}

			if !l.allow(key) {
				tooMany(w, 1)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogging logs one line per request with status, size and latency.
func RequestLogging(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			id := &identity{}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), identityKey, id)))

			l.Info(r.Context(), "request",
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"user_id", id.userID,
			)
		})
	}
}
