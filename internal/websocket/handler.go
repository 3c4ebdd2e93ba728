package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/Remijang/cnl-final-project-sub000/internal/auth"
)

// HandleWebSocket upgrades authenticated requests and runs them as Hub
// clients. originPatterns lists the cross-origin hosts allowed to connect;
// empty allows same-origin only.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, auth.UserID(r.Context()))
		client.Run(r.Context())
	}
}
