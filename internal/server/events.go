package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const eventWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MovieEvents handles GET /movies/{id}/events. It upgrades to a websocket
// and sends a MovieResponse whenever the job changes, closing the stream
// once the job is terminal.
func (h *Handlers) MovieEvents(w http.ResponseWriter, r *http.Request) {
	current, ok := h.findJob(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()

	logger := h.logger.With(slog.String("job_id", current.ID))

	// The client never sends anything; reading detects when it goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.eventInterval)
	defer ticker.Stop()

	var last MovieResponse
	for {
		snap := newMovieResponse(current)
		if !snap.UpdatedAt.Equal(last.UpdatedAt) || snap.Status != last.Status || snap.Progress != last.Progress {
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				logger.Debug("event stream closed", slog.String("error", err.Error()))
				return
			}
			last = snap
		}
		if current.IsTerminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, snap.Status)
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventWriteTimeout))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}

		next, err := h.service.GetJob(r.Context(), current.ID)
		if err != nil {
			logger.Warn("event stream lost its job", slog.String("error", err.Error()))
			return
		}
		current = next
	}
}
