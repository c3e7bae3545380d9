package verify

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/veraproof/verification-core/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS for the WS handshake is enforced by the gateway, not here
	},
}

// wsConn adapts *websocket.Conn to the Handler's conn interface.
type wsConn struct {
	raw *websocket.Conn
}

func (c wsConn) ReadMessage() (int, []byte, error) {
	return c.raw.ReadMessage()
}

func (c wsConn) WriteJSON(v any) error {
	return c.raw.WriteJSON(v)
}

func (c wsConn) Close(code int, reason string) error {
	deadline := time.Now().Add(2 * time.Second)
	_ = c.raw.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return c.raw.Close()
}

// WSHandler upgrades /api/v1/ws/verify/{session_id} and runs a Handler for
// the connection's lifetime. After the upgrade it looks the session up under
// the caller's tenant; a session that does not exist or belongs to another
// tenant is closed with code 1008.
type WSHandler struct {
	Deps *Deps
}

func NewWSHandler(deps *Deps) *WSHandler {
	return &WSHandler{Deps: deps}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromPath(r.URL.Path)
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	auth, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("verify: ws upgrade failed for %s: %v", sessionID, err)
		return
	}
	conn := wsConn{raw: c}

	sess, err := h.Deps.Sessions.Get(r.Context(), auth.TenantID, sessionID)
	if err != nil {
		_ = conn.Close(1008, "session not found")
		return
	}

	handler := NewHandler(h.Deps, conn, sess.SessionID, sess.TenantID)
	handler.Run(r.Context())
}

// sessionIDFromPath extracts the trailing path segment after
// /ws/verify/, avoiding a router dependency for this one route.
func sessionIDFromPath(path string) string {
	const marker = "/ws/verify/"
	idx := strings.Index(path, marker)
	if idx == -1 {
		return ""
	}
	return strings.Trim(path[idx+len(marker):], "/")
}
