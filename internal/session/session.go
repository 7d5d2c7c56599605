// Package session implements the per-stream ingestion context: the
// Starting -> Active -> Offline state machine that polls or observes one
// live chat, normalizes and deduplicates records, and emits delivery batches.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/dedup"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/metrics"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/normalize"
)

// State of a stream session. Transitions are one-way:
// Starting -> Active -> Offline.
type State int32

const (
	StateStarting State = iota
	StateActive
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Handlers receive the session's output events. OnBatch is called with
// batches in tick/notification order; OnOffline is called exactly once, after
// which no further OnBatch call happens for this session. Both are invoked
// from the session goroutine and must not block for long.
type Handlers struct {
	OnBatch   func(streamID string, msgs []domain.Message)
	OnOffline func(streamID string)
}

// Config bounds a session's resources.
type Config struct {
	// PollInterval drives poll-mode sessions. Ignored in push mode.
	PollInterval time.Duration
	// CacheCapacity bounds the fingerprint cache (and the element-id cache
	// in push mode). Must be positive.
	CacheCapacity int
	// MaxConsecutiveFailures is the number of consecutive extraction errors
	// after which the session gives up and goes offline.
	MaxConsecutiveFailures int
}

// Session owns one ingestion source for one stream id. Create with New,
// start with Start, tear down with Stop. After Stop returns no further
// events are emitted for this stream id.
type Session struct {
	streamID string
	source   domain.Source
	cfg      Config
	clock    clockwork.Clock
	handlers Handlers
	logger   *slog.Logger

	cache   *dedup.Cache // content fingerprints
	idCache *dedup.Cache // source element ids, push mode only
	breaker *gobreaker.CircuitBreaker

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}

	offlineOnce sync.Once
}

// New builds a session around an already-attached source. The source must
// implement domain.PollSource or domain.PushSource.
func New(streamID string, source domain.Source, cfg Config, clock clockwork.Clock, handlers Handlers) (*Session, error) {
	cache, err := dedup.NewCache(cfg.CacheCapacity)
	if err != nil {
		return nil, err
	}
	idCache, err := dedup.NewCache(cfg.CacheCapacity)
	if err != nil {
		return nil, err
	}

	maxFailures := cfg.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}

	s := &Session{
		streamID: streamID,
		source:   source,
		cfg:      cfg,
		clock:    clock,
		handlers: handlers,
		logger:   slog.With("stream_id", streamID),
		cache:    cache,
		idCache:  idCache,
		done:     make(chan struct{}),
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "extract-" + streamID,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
	})

	return s, nil
}

// StreamID returns the stream id this session ingests.
func (s *Session) StreamID() string {
	return s.streamID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Start launches the ingestion loop. Returns an error if the source
// implements neither ingestion interface.
func (s *Session) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	switch src := s.source.(type) {
	case domain.PollSource:
		go s.runPoll(ctx, src)
	case domain.PushSource:
		go s.runPush(ctx, src)
	default:
		cancel()
		close(s.done)
		return errors.New("session: source implements neither PollSource nor PushSource")
	}

	metrics.SessionsStartedTotal.Inc()
	metrics.SessionsActive.Inc()
	return nil
}

// Stop cancels the ingestion loop and closes the source. Blocks until the
// loop has exited, so no delivery event can fire after Stop returns. Safe to
// call on an already-offline session.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	if err := s.source.Close(); err != nil {
		s.logger.Warn("Failed to close ingestion source", "error", err)
	}
}

func (s *Session) runPoll(ctx context.Context, src domain.PollSource) {
	defer close(s.done)
	s.state.Store(int32(StateActive))
	s.logger.Info("Session active", "mode", "poll", "interval", s.cfg.PollInterval)

	ticker := s.clock.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.markStopped()
			return
		case <-ticker.Chan():
			if cause, offline := s.tick(ctx, src); offline {
				s.goOffline(cause)
				return
			}
		}
	}
}

func (s *Session) runPush(ctx context.Context, src domain.PushSource) {
	defer close(s.done)
	s.state.Store(int32(StateActive))
	s.logger.Info("Session active", "mode", "observe")

	for {
		select {
		case <-ctx.Done():
			s.markStopped()
			return
		case records, ok := <-src.Notifications():
			if !ok {
				s.goOffline("source_closed")
				return
			}
			s.ingest(s.dropSeenIDs(records))
		case <-src.Offline():
			s.goOffline("offline_notice")
			return
		}
	}
}

// tick runs one poll-mode extraction. Returns offline=true when the session
// must terminate, with the cause for logging and metrics.
func (s *Session) tick(ctx context.Context, src domain.PollSource) (cause string, offline bool) {
	start := s.clock.Now()
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return src.Poll(ctx)
	})
	metrics.ExtractionDuration.Observe(s.clock.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return "", false // shutting down, loop exits on ctx.Done
		}
		metrics.ExtractionTicksTotal.WithLabelValues("error").Inc()

		// The breaker trips on persistent consecutive failures; once open,
		// retrying is pointless and the stream is treated as gone.
		if errors.Is(err, gobreaker.ErrOpenState) || s.breaker.State() == gobreaker.StateOpen {
			metrics.SessionCircuitOpensTotal.Inc()
			s.logger.Warn("Persistent extraction failures, giving up", "error", err)
			return "extraction_failures", true
		}

		s.logger.Warn("Extraction tick failed, treating as empty", "error", err)
		return "", false
	}

	metrics.ExtractionTicksTotal.WithLabelValues("ok").Inc()
	snapshot := result.(domain.Snapshot)
	if snapshot.OfflineDetected {
		return "offline_notice", true
	}

	s.ingest(snapshot.Records)
	return "", false
}

// dropSeenIDs is the id-based dedup layer for push sources: the observer
// re-reports nodes it has already announced when the chat pane re-renders,
// and its id space is independent of content fingerprints.
func (s *Session) dropSeenIDs(records []domain.RawRecord) []domain.RawRecord {
	fresh := records[:0]
	for _, record := range records {
		if record.ElementID != "" {
			if s.idCache.Has(record.ElementID) {
				continue
			}
			s.idCache.Add(record.ElementID)
		}
		fresh = append(fresh, record)
	}
	s.idCache.EvictToCapacity(s.idCache.Capacity())
	return fresh
}

// ingest normalizes a batch, drops duplicates via the fingerprint cache and
// emits the survivors as one delivery batch, preserving input order.
func (s *Session) ingest(records []domain.RawRecord) {
	if len(records) == 0 {
		return
	}

	var fresh []domain.Message
	dropped := 0
	for _, record := range records {
		msg, ok := normalize.Normalize(record)
		if !ok {
			dropped++
			continue
		}
		fp := dedup.Fingerprint(msg)
		if s.cache.Has(fp) {
			metrics.MessagesDedupedTotal.Inc()
			continue
		}
		s.cache.Add(fp)
		fresh = append(fresh, msg)
	}
	s.cache.EvictToCapacity(s.cache.Capacity())

	if dropped > 0 {
		metrics.RecordsDroppedTotal.Add(float64(dropped))
	}
	if len(fresh) > 0 {
		metrics.MessagesDeliveredTotal.Add(float64(len(fresh)))
		s.handlers.OnBatch(s.streamID, fresh)
	}
}

// goOffline performs the one-way transition to the terminal state and emits
// the terminal event exactly once.
func (s *Session) goOffline(cause string) {
	s.offlineOnce.Do(func() {
		s.state.Store(int32(StateOffline))
		metrics.SessionsActive.Dec()
		metrics.SessionsOfflineTotal.WithLabelValues(cause).Inc()
		s.logger.Info("Session offline", "cause", cause)
		if s.handlers.OnOffline != nil {
			s.handlers.OnOffline(s.streamID)
		}
	})
}

// markStopped records an externally driven teardown (Stop during shutdown).
// No terminal event: the subscribers are being closed by the caller.
func (s *Session) markStopped() {
	s.offlineOnce.Do(func() {
		s.state.Store(int32(StateOffline))
		metrics.SessionsActive.Dec()
	})
}
