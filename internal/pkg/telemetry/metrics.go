package telemetry

// Span and attribute names used for instrumentation.
const (
	SpanInboxMessage  = "inbox.message"
	SpanOutboxRequest = "outbox.request"
	SpanFeedPoll      = "companion.feed_poll"
	SpanCompanionSend = "companion.send"
	SpanPersistSave   = "persist.save"
	SpanPersistLoad   = "persist.load"

	AttrMessageKind  = "molbubble.message.kind"
	AttrMessageBytes = "molbubble.message.bytes"
	AttrStationCount = "molbubble.stations.count"
	AttrAttempt      = "molbubble.send.attempt"
)
