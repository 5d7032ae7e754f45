package cpsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/version"
)

const (
	v1Events = "/v1/events"

	eventsChannelSize = 64
	eventsReadLimit   = 1 << 20
	eventsDialTimeout = 10 * time.Second
)

// Event is a bus event as received over the wire. Data is decoded lazily
// since its shape depends on Type.
type Event struct {
	ID      string          `json:"id"`
	Type    events.Type     `json:"type"`
	Subject string          `json:"subject"`
	Time    time.Time       `json:"time"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the payload into v, e.g. events.ProgressData
func (e *Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return jsonUnmarshal(e.Data, v)
}

type EventsAPI struct {
	baseURL string
	token   string
}

func newEventsAPI(baseURL, token string) *EventsAPI {
	return &EventsAPI{baseURL: baseURL, token: token}
}

func (e *EventsAPI) url(types []events.Type) (string, error) {
	u, err := url.Parse(e.baseURL + v1Events)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		q := u.Query()
		q.Set("types", strings.Join(names, ","))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Subscribe streams events until ctx is done or the daemon goes away. The
// channel is closed when the stream ends. No types means every event.
func (e *EventsAPI) Subscribe(ctx context.Context, types ...events.Type) (<-chan *Event, error) {
	wsURL, err := e.url(types)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set(HeaderUserAgent, version.UserAgent())
	if e.token != "" {
		header.Set("Authorization", "Bearer "+e.token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, eventsDialTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &APIError{Status: resp.StatusCode, Code: CodeUnauthorized, Message: "unauthorized"}
		}
		return nil, fmt.Errorf("subscribe events: %w: %w", ErrDaemonDown, err)
	}
	conn.SetReadLimit(eventsReadLimit)

	out := make(chan *Event, eventsChannelSize)
	go func() {
		defer close(out)
		defer conn.CloseNow()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
					slog.Debug("events stream read", "error", err)
				}
				return
			}

			var ev Event
			if err := jsonUnmarshal(data, &ev); err != nil {
				slog.Warn("events stream decode", "error", err)
				continue
			}

			select {
			case out <- &ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
