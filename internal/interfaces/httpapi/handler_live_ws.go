package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/korfbal-live/internal/platform/livehub"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsMaxMessageSize = 512
)

// LiveSocket streams detail or timer changes for a match.
func (h *Handler) LiveSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matchID := r.PathValue("matchID")

	raw := r.URL.Query().Get("role")
	if raw == "" {
		raw = string(livehub.RoleDetail)
	}
	role, ok := livehub.ParseRole(raw)
	if !ok || role == livehub.RoleTracker {
		h.writeError(ctx, w, fmt.Errorf("%w: role must be detail or timer", usecase.ErrInvalidInput))
		return
	}

	var snapshot func(ctx context.Context) (any, error)
	if role == livehub.RoleTimer {
		snapshot = func(ctx context.Context) (any, error) { return h.timer.Snapshot(ctx, matchID) }
	} else {
		snapshot = func(ctx context.Context) (any, error) { return h.projections.Live(ctx, matchID) }
	}
	h.serveSocket(w, r, livehub.Key{MatchID: matchID, Role: role}, snapshot)
}

// TrackerSocket streams tracker changes to an authorised coach.
func (h *Handler) TrackerSocket(w http.ResponseWriter, r *http.Request) {
	matchID, teamID, err := h.authorizeTracker(r)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.serveSocket(w, r, livehub.Key{MatchID: matchID, Role: livehub.RoleTracker}, func(ctx context.Context) (any, error) {
		return h.tracker.State(ctx, matchID, teamID)
	})
}

// serveSocket validates the match with an initial snapshot, upgrades, then
// relays hub messages until either side goes away.
func (h *Handler) serveSocket(w http.ResponseWriter, r *http.Request, key livehub.Key, snapshot func(ctx context.Context) (any, error)) {
	ctx := r.Context()

	initial, err := snapshot(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	sub, err := h.hub.Subscribe(key)
	if err != nil {
		h.writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrDependencyUnavailable, err))
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed", "match_id", key.MatchID, "role", key.Role, "error", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go h.readPump(conn, done)

	first := livehub.Message{MatchID: key.MatchID, Role: key.Role, Kind: livehub.KindStateChanged, Payload: initial}
	if err := writeFrame(conn, first); err != nil {
		return
	}
	h.writePump(ctx, conn, sub, done)
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sub *livehub.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				// Dropped as a slow consumer or hub shut down.
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription closed"))
				return
			}
			if err := writeFrame(conn, msg); err != nil {
				h.logger.DebugContext(ctx, "websocket write failed", "match_id", msg.MatchID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readPump discards client frames and keeps the read deadline alive on pong.
func (h *Handler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	readTimeout := 2 * h.pingInterval
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, msg livehub.Message) error {
	body, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, body)
}
