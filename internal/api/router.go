package api

import (
	"net/http"
	"strings"

	"github.com/veraproof/verification-core/internal/apierr"
)

// SessionsRouter dispatches the four /sessions routes without pulling in a
// full router dependency, matching the path-trimming style the rest of
// this stack uses for its smaller route groups.
func SessionsRouter(h *SessionHandlers) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions")
		rest = strings.Trim(rest, "/")

		if rest == "create" && r.Method == http.MethodPost {
			h.Create(w, r)
			return
		}

		segments := strings.Split(rest, "/")
		if len(segments) == 0 || segments[0] == "" {
			writeError(w, apierr.New(apierr.NotFound, "not found"))
			return
		}
		sessionID := segments[0]

		if r.Method != http.MethodGet {
			writeError(w, apierr.New(apierr.NotFound, "not found"))
			return
		}

		switch {
		case len(segments) == 1:
			h.Get(w, r, sessionID)
		case len(segments) == 2 && segments[1] == "results":
			h.Results(w, r, sessionID)
		case len(segments) == 2 && segments[1] == "video":
			h.Artifact(w, r, sessionID, ArtifactVideo)
		case len(segments) == 2 && segments[1] == "imu-data":
			h.Artifact(w, r, sessionID, ArtifactIMUData)
		case len(segments) == 2 && segments[1] == "optical-flow":
			h.Artifact(w, r, sessionID, ArtifactOpticalFlow)
		default:
			writeError(w, apierr.New(apierr.NotFound, "not found"))
		}
	})
}
