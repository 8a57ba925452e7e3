package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/MJE43/senipy/internal/auth"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// EventInitialSession is sent once when a feed opens.
const EventInitialSession = "INITIAL_SESSION"

// handleAuthEvents streams auth state changes of the visitor over a
// websocket. Browsers only listen; anything they send is discarded.
func (s *Server) handleAuthEvents(w http.ResponseWriter, r *http.Request) {
	visitor := VisitorFrom(r.Context())
	requestID := middleware.GetReqID(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket_upgrade_failed", "request_id", requestID, "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.auth.Hub().Subscribe(visitor)
	defer unsubscribe()
	s.logger.Debug("auth_feed_opened", "request_id", requestID)

	initial := auth.Event{Type: EventInitialSession, At: s.clock.Now()}
	if id := IdentityFrom(r.Context()); id != nil {
		initial.UserID, initial.Email = id.UserID, id.Email
	}
	if err := writeEvent(conn, initial); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev auth.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}
