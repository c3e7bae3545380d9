package api

import (
	"net/http"
	"strconv"

	"github.com/veraproof/verification-core/internal/apierr"
	"github.com/veraproof/verification-core/internal/data"
	"github.com/veraproof/verification-core/internal/middleware"
)

// DashboardHandlers serves the JWT-authenticated operator surface: a
// paginated view over a tenant's own sessions, for a human reviewing
// verification history rather than an integration polling one session.
type DashboardHandlers struct {
	Sessions data.SessionModel
}

const defaultPageSize = 25

func (h *DashboardHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, apierr.New(apierr.AuthInvalid, "unauthenticated"))
		return
	}

	limit := defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	sessions, err := h.Sessions.ListByTenant(r.Context(), auth.TenantID, limit, offset)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "failed to list sessions", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "limit": limit, "offset": offset})
}

// DashboardRouter dispatches the small, read-only dashboard route group.
func DashboardRouter(h *DashboardHandlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/dashboard/sessions", h.ListSessions)
	return mux
}
