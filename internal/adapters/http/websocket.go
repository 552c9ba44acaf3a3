package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/usecases"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
)

// Event types pushed to websocket clients.
const (
	EventHello     = "hello"
	EventList      = "list"
	EventIcons     = "icons"
	EventCompass   = "compass"
	EventSelection = "selection"
	EventError     = "error"
)

// Frame formats accepted in the ?format= query parameter.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

const clientBuffer = 64

// Event is one presenter notification.
type Event struct {
	Type    string           `json:"type"`
	Pending *domain.Pending  `json:"pending,omitempty"`
	Station *domain.Station  `json:"station,omitempty"`
	Rank    *int             `json:"rank,omitempty"`
	Status  *usecases.Status `json:"status,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type hubClient struct {
	format string
	send   chan []byte
}

// Hub fans presenter notifications out to websocket clients. It implements
// ports.Presenter and never calls back into the station store.
type Hub struct {
	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*hubClient]struct{})}
}

// RefreshList tells clients the station order or contents changed.
func (h *Hub) RefreshList() {
	h.Broadcast(Event{Type: EventList})
}

// RefreshIcons pushes the pending flags.
func (h *Hub) RefreshIcons(p domain.Pending) {
	h.Broadcast(Event{Type: EventIcons, Pending: &p})
}

// RefreshCompass pushes the selected station after it changed.
func (h *Hub) RefreshCompass(st domain.Station) {
	h.Broadcast(Event{Type: EventCompass, Station: &st})
}

// SetSelection pushes the new selection rank, -1 for none.
func (h *Hub) SetSelection(rank int) {
	h.Broadcast(Event{Type: EventSelection, Rank: &rank})
}

// Subscribe registers a client. Frames are encoded in format and delivered
// on the returned channel until cancel is called.
func (h *Hub) Subscribe(format string) (<-chan []byte, func()) {
	c := &hubClient{format: format, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.ActiveWebSockets.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			metrics.ActiveWebSockets.Dec()
		})
	}
	return c.send, cancel
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends ev to every client. Slow clients lose the event rather
// than stall the caller.
func (h *Hub) Broadcast(ev Event) {
	frames := make(map[string][]byte, 2)

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		data, ok := frames[c.format]
		if !ok {
			var err error
			data, err = EncodeEvent(c.format, ev)
			if err != nil {
				slog.Error("ws encode failed", "format", c.format, "error", err)
				continue
			}
			frames[c.format] = data
		}
		select {
		case c.send <- data:
		default:
			slog.Warn("ws client lagging, event dropped", "type", ev.Type)
		}
	}
}

// EncodeEvent serializes ev as JSON or MessagePack. MessagePack frames use
// the same field names as JSON.
func EncodeEvent(format string, ev Event) ([]byte, error) {
	if format != FormatMsgpack {
		return json.Marshal(ev)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wsCommand is sent by clients to move the selection.
type wsCommand struct {
	Action string `json:"action"` // "select" | "step" | "status"
	Rank   int    `json:"rank"`
	Delta  int    `json:"delta"`
}

// WebSocketHandler streams presenter events to the client and accepts
// selection commands: {"action":"select","rank":0} or {"action":"step","delta":1}.
// ?format=msgpack switches frames to MessagePack.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		format := c.Query("format", FormatJSON)
		if format != FormatMsgpack {
			format = FormatJSON
		}
		frameType := websocket.TextMessage
		if format == FormatMsgpack {
			frameType = websocket.BinaryMessage
		}

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr, "format", format)

		events, cancel := deps.Hub.Subscribe(format)
		defer cancel()

		reply := func(ev Event) {
			data, err := EncodeEvent(format, ev)
			if err != nil {
				return
			}
			_ = c.WriteMessage(frameType, data)
		}

		var mu sync.Mutex
		write := func(fn func()) {
			mu.Lock()
			defer mu.Unlock()
			fn()
		}

		status := deps.Stations.Status()
		write(func() { reply(Event{Type: EventHello, Status: &status}) })

		// Writer: hub events and keep-alive pings
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case data := <-events:
					var err error
					write(func() { err = c.WriteMessage(frameType, data) })
					if err != nil {
						return
					}
				case <-ticker.C:
					var err error
					write(func() { err = c.WriteMessage(websocket.PingMessage, nil) })
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var cmd wsCommand
			if err := json.Unmarshal(msg, &cmd); err != nil {
				write(func() { reply(Event{Type: EventError, Error: "invalid JSON"}) })
				continue
			}

			switch cmd.Action {
			case "select":
				if !deps.Stations.Select(cmd.Rank) {
					write(func() { reply(Event{Type: EventError, Error: "no station at rank"}) })
				}
			case "step":
				if !deps.Stations.Step(cmd.Delta) {
					write(func() { reply(Event{Type: EventError, Error: "station table is empty"}) })
				}
			case "status":
				st := deps.Stations.Status()
				write(func() { reply(Event{Type: EventHello, Status: &st}) })
			default:
				write(func() { reply(Event{Type: EventError, Error: "unknown action: " + cmd.Action}) })
			}
		}

		close(done)
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
