package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
)

// Registry maps stream id -> Session and enforces at most one non-offline
// session per stream id. GetOrCreate is the concurrency-sensitive entry
// point: concurrent first subscriptions to the same new stream id must not
// spawn duplicate ingestion sources, and a slow source attach for one stream
// must not block attaches for other streams.
type Registry struct {
	cfg      Config
	factory  domain.SourceFactory
	clock    clockwork.Clock
	handlers Handlers

	mu      sync.Mutex
	entries map[string]*entry
}

// entry is either a live session or an attach in flight. ready is closed
// once session/err are settled.
type entry struct {
	ready   chan struct{}
	session *Session
	err     error
}

// NewRegistry creates an empty registry. Sessions it creates use cfg, the
// given source factory and emit into handlers.
func NewRegistry(cfg Config, factory domain.SourceFactory, clock clockwork.Clock, handlers Handlers) *Registry {
	return &Registry{
		cfg:      cfg,
		factory:  factory,
		clock:    clock,
		handlers: handlers,
		entries:  make(map[string]*entry),
	}
}

// GetOrCreate returns the existing session for streamID if one is live, or
// attaches a fresh source and starts a new session. Callers racing on the
// same new stream id share a single attach; only one source is ever opened.
func (r *Registry) GetOrCreate(ctx context.Context, streamID string) (*Session, error) {
	for {
		r.mu.Lock()
		e, exists := r.entries[streamID]
		if !exists {
			e = &entry{ready: make(chan struct{})}
			r.entries[streamID] = e
			r.mu.Unlock()
			r.attach(ctx, streamID, e)
		} else {
			r.mu.Unlock()
		}

		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if e.err != nil {
			return nil, e.err
		}
		if e.session.State() != StateOffline {
			return e.session, nil
		}

		// Stale terminal entry (offline detected but not yet removed by the
		// router). Clear it and attach fresh.
		r.mu.Lock()
		if r.entries[streamID] == e {
			delete(r.entries, streamID)
		}
		r.mu.Unlock()
	}
}

// attach opens the source and starts the session, settling e for all
// waiters. Runs outside the registry lock: attaching suspends on the page
// load and must not serialize unrelated streams.
func (r *Registry) attach(ctx context.Context, streamID string, e *entry) {
	defer close(e.ready)

	source, err := r.factory(ctx, streamID)
	if err != nil {
		slog.Warn("Failed to attach ingestion source", "stream_id", streamID, "error", err)
		e.err = err
		r.drop(streamID, e)
		return
	}

	sess, err := New(streamID, source, r.cfg, r.clock, r.handlers)
	if err == nil {
		err = sess.Start()
	}
	if err != nil {
		_ = source.Close()
		e.err = err
		r.drop(streamID, e)
		return
	}

	e.session = sess
}

// Remove drops the session for streamID and tears it down. No-op for an
// unknown id. Tolerates double removal (offline teardown racing shutdown).
func (r *Registry) Remove(streamID string) {
	r.mu.Lock()
	e, exists := r.entries[streamID]
	if exists {
		delete(r.entries, streamID)
	}
	r.mu.Unlock()

	if exists && e.session != nil {
		e.session.Stop()
	}
}

// Len returns the number of registered sessions, in-flight attaches included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll tears down every settled session. Used on process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for id, e := range r.entries {
		entries = append(entries, e)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		select {
		case <-e.ready:
			if e.session != nil {
				e.session.Stop()
			}
		default:
			// Attach still in flight; its context belongs to the caller and
			// the source will be closed by the failing subscribe path.
		}
	}
}

func (r *Registry) drop(streamID string, e *entry) {
	r.mu.Lock()
	if r.entries[streamID] == e {
		delete(r.entries, streamID)
	}
	r.mu.Unlock()
}
