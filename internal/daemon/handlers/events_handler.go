package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gin-gonic/gin"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/utils"
)

const (
	eventWriteTimeout = 10 * time.Second
	shutdownReason    = "shutdown"
)

// EventsHandler streams bus events to websocket clients
type EventsHandler struct {
	bus *events.Bus
}

func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Stream upgrades to a websocket and writes every event as a JSON message.
// `?types=task.progress,mount.status` restricts the stream.
func (h *EventsHandler) Stream(c *gin.Context) {
	filter := parseTypes(c.Query("types"))

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("websocket accept failed: %w", err))
		return
	}

	connID := utils.TokenHex(4)
	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	// the client never sends; CloseRead handles control frames and cancels on close
	ctx := conn.CloseRead(c.Request.Context())
	slog.Debug("events stream open", "connId", connID, "ip", c.ClientIP())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			slog.Debug("events stream closed", "connId", connID)
			return

		case ev, open := <-sub:
			if !open {
				conn.Close(websocket.StatusGoingAway, shutdownReason)
				return
			}
			if filter != nil && !filter.Contains(ev.Type) {
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Warn("events stream write", "connId", connID, "error", err)
				}
				conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func parseTypes(raw string) mapset.Set[events.Type] {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	set := mapset.NewThreadUnsafeSet[events.Type]()
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			set.Add(events.Type(part))
		}
	}
	return set
}
