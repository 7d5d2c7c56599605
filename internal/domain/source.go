package domain

import "context"

// Snapshot is one full extraction of the chat pane.
type Snapshot struct {
	// OfflineDetected is set when the page shows a "chat is disabled /
	// turned off / unavailable / ended" notice in place of the chat feed.
	OfflineDetected bool
	Records         []RawRecord
}

// Source is one attached ingestion source for a single stream. A Source is
// owned by exactly one stream session and closed when that session ends.
//
// Implementations come in two flavours. Poll-driven sources implement
// PollSource and re-extract the full chat state on demand. Push-driven
// sources implement PushSource and deliver only newly appeared records.
type Source interface {
	Close() error
}

// PollSource re-reads the complete current chat state on each call.
type PollSource interface {
	Source
	Poll(ctx context.Context) (Snapshot, error)
}

// PushSource delivers batches of newly appeared records as they happen.
// Records carry the source-assigned ElementID so the session can run its
// id-based dedup layer. The Offline channel is closed (at most once) when
// the source detects the end of the stream; after Close, neither channel
// delivers again.
type PushSource interface {
	Source
	Notifications() <-chan []RawRecord
	Offline() <-chan struct{}
}

// SourceFactory attaches a fresh ingestion source for the given stream id.
// It fails with ErrSourceUnavailable (possibly wrapped) when the target
// cannot be reached.
type SourceFactory func(ctx context.Context, streamID string) (Source, error)
