package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// SubscribeLeads upgrades to a WebSocket and starts the vendor's intake
// loop. The loop lives exactly as long as the socket: disconnecting tears
// down the poller and any armed countdown.
func (h *Handler) SubscribeLeads(w http.ResponseWriter, r *http.Request) {
	phone := vendorPhone(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warnw("websocket upgrade failed", "vendor", phone, "error", err)
		return
	}
	defer conn.Close()

	intake, stop := h.Leads.Subscribe(r.Context(), phone)
	defer stop()

	// Drain client frames so pings and close frames are processed. The
	// goroutine only exits when ReadMessage errors; if the event loop below
	// returns first, the deferred Close is what unblocks the read.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				stop()
				return
			}
		}
	}()

	for ev := range intake.Events() {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			h.Logger.Warnw("websocket write failed", "vendor", phone, "error", err)
			return
		}
	}
}
