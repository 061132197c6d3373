package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/cybershop/internal/access"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
	headerSessionID = "X-Session-ID"
)

// Identity is the caller as asserted by the upstream auth proxy. UserID is
// zero for anonymous callers; SessionID identifies a guest cart.
type Identity struct {
	UserID    int64
	Role      access.Role
	SessionID string
}

func (i Identity) Authenticated() bool {
	return i.UserID > 0
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// IdentityMiddleware reads the caller identity headers. A user without a
// role header is a customer; malformed headers are rejected.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id Identity
		if raw := strings.TrimSpace(r.Header.Get(headerUserID)); raw != "" {
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				respondError(w, http.StatusBadRequest, "invalid_user_id", headerUserID+" must be a positive integer")
				return
			}
			id.UserID = userID
			id.Role = access.Customer
			if rawRole := r.Header.Get(headerUserRole); rawRole != "" {
				role, err := access.ParseRole(rawRole)
				if err != nil {
					respondError(w, http.StatusBadRequest, "invalid_role", err.Error())
					return
				}
				id.Role = role
			}
		}
		id.SessionID = strings.TrimSpace(r.Header.Get(headerSessionID))

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// RequireRole rejects anonymous callers with 401 and callers below required
// with 403.
func RequireRole(required access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identityFrom(r.Context())
			if !id.Authenticated() {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}
			if !access.HasAccess(id.Role, required) {
				respondError(w, http.StatusForbidden, "permission_denied",
					"role "+id.Role.String()+" may not access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
