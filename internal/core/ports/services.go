package ports

import (
	"context"

	"github.com/samirrijal/molbubble/internal/core/domain"
)

// Presenter is notified when the station data changes. Calls are made
// while the station store is locked, so implementations must not call
// back into the store.
type Presenter interface {
	RefreshList()
	RefreshIcons(p domain.Pending)
	RefreshCompass(st domain.Station)
	SetSelection(rank int)
}

// RequestSender asks the companion to resend station data.
type RequestSender interface {
	SendRequest(ctx context.Context) error
}

// MessagePublisher delivers dictionaries from the companion to the watch.
// kind is a label used for logging. High priority messages jump the queue.
type MessagePublisher interface {
	Publish(ctx context.Context, kind string, msg domain.Message, highPriority bool) error
}
