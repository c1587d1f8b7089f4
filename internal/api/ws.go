package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fastprodman/pointsarena/internal/events"
	"github.com/fastprodman/pointsarena/internal/games"
	"github.com/fastprodman/pointsarena/internal/infra/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// FeedHandler handles GET /ws?types=RACE,BUSTA&accountId=
//
// It streams round and bet events as JSON text frames. The feed is push-only;
// anything the client sends apart from control frames is ignored.
func (h *HandlerProvider) FeedHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(filter)
	defer sub.Close()

	done := make(chan struct{})
	go drain(conn, done)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteWait))

				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

			err := conn.WriteJSON(e)
			if err != nil {
				slog.DebugContext(r.Context(), "websocket write failed", logging.Err(err))
				return
			}
		case <-ping.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			if err != nil {
				return
			}
		}
	}
}

// drain reads until the peer goes away so pongs and close frames are
// processed.
func drain(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func (h *HandlerProvider) parseFilter(r *http.Request) (events.Filter, error) {
	q := r.URL.Query()

	f := events.Filter{AccountID: strings.TrimSpace(q.Get("accountId"))}

	raw := strings.TrimSpace(q.Get("types"))
	if raw == "" {
		return f, nil
	}

	known := h.rounds.Games()

	for _, part := range strings.Split(raw, ",") {
		t := games.ParseType(part)
		if !slices.Contains(known, t) {
			return events.Filter{}, fmt.Errorf("unknown game type %q", strings.TrimSpace(part))
		}

		f.GameTypes = append(f.GameTypes, string(t))
	}

	return f, nil
}
