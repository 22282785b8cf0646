package policy

import (
	"log/slog"
	"net/http"

	"github.com/voyagedesk/voyagedesk/internal/platform/httpx"
	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the current actor holds the given capability.
func (m Middleware) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if HasPermission(actor, permission) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil && actor != nil {
				m.Logger.Debug("permission denied",
					slog.String("actor", actor.ID),
					slog.String("role", string(actor.Role)),
					slog.String("permission", permission))
			}
			httpx.RespondError(w, shared.ErrPermissionDenied)
		})
	}
}
