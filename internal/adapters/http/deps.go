package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Stations *usecases.StationStore
	Inbox    *usecases.InboxService
	Hub      *Hub
	NATS     *nats.Conn
	Storage  ports.Pinger
}
