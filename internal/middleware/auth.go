package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"planner-agent/internal/auth"
	"planner-agent/internal/guard"
	"planner-agent/internal/logger"
	"planner-agent/internal/session"
)

// unexported, collision-proof context key
type userContextKeyType struct{}

var userKey = userContextKeyType{}

// UserFromContext returns the session user attached by RequireRoles.
func UserFromContext(ctx context.Context) (auth.User, bool) {
	u, ok := ctx.Value(userKey).(auth.User)
	return u, ok
}

// SessionReader is what the guard needs from the session store.
type SessionReader interface {
	Snapshot() session.State
	IsAuthenticated(ctx context.Context) bool
}

type AuthMiddleware struct {
	Session SessionReader
}

func NewAuthMiddleware(sess SessionReader) *AuthMiddleware {
	return &AuthMiddleware{Session: sess}
}

func (a *AuthMiddleware) state(ctx context.Context) (guard.State, session.State) {
	snap := a.Session.Snapshot()
	return guard.State{
		Loading:       snap.Loading,
		Authenticated: a.Session.IsAuthenticated(ctx),
		Role:          snap.Role,
	}, snap
}

// RequireRoles lets the request through only when the guard decides Render.
// An empty role list admits any authenticated session.
func (a *AuthMiddleware) RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, snap := a.state(r.Context())

			switch guard.Decide(st, roles...) {
			case guard.Loading:
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
				return
			case guard.RedirectToLogin:
				logger.Debug("guard redirect", map[string]any{
					"path": r.URL.Path,
					"role": string(st.Role),
				})
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":    "unauthorized",
					"redirect": guard.LoginPath,
				})
				return
			}

			ctx := r.Context()
			if snap.User != nil {
				ctx = context.WithValue(ctx, userKey, *snap.User)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
