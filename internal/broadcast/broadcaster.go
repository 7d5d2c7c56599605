package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/metrics"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/session"
)

const (
	commandTimeout = 5 * time.Second
	attachTimeout  = 60 * time.Second
	stopTimeout    = 10 * time.Second
)

// offlineNotice is the one-time terminal frame sent to every subscriber of a
// stream before the server closes their connections.
var offlineNotice = []byte(`{"offlineDetected":true}`)

// SessionRegistry is the part of the session registry the broadcaster drives.
type SessionRegistry interface {
	GetOrCreate(ctx context.Context, streamID string) (*session.Session, error)
	Remove(streamID string)
}

// StreamStatus is a point-in-time view of one stream's fan-out state.
type StreamStatus struct {
	Ingesting   bool `json:"ingesting"`
	Subscribers int  `json:"subscribers"`
}

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type subscribeCmd struct {
	baseBroadcasterCmd
	streamID     string
	connection   *websocket.Conn
	errorChannel chan error
}

type unsubscribeCmd struct {
	baseBroadcasterCmd
	connection *websocket.Conn
}

type deliverCmd struct {
	baseBroadcasterCmd
	streamID string
	payload  []byte
	count    int
}

type streamOfflineCmd struct {
	baseBroadcasterCmd
	streamID string
}

type sessionReadyCmd struct {
	baseBroadcasterCmd
	streamID string
	seq      uint64
	err      error
}

type statusCmd struct {
	baseBroadcasterCmd
	streamID     string
	replyChannel chan StreamStatus
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster routes delivery batches from stream sessions to subscribed
// WebSocket clients and drives session lifecycle through the SessionRegistry:
// first subscriber triggers the attach, the terminal event tears everything
// down. A stream with zero subscribers keeps its session running; teardown is
// offline-driven only.
type Broadcaster struct {
	commands chan broadcasterCmd
	clock    clockwork.Clock
	sessions SessionRegistry

	subs *subscriptionRegistry
	// ingesting marks streams whose session attach has completed.
	ingesting map[string]bool
	// pending queues subscribers that arrived while their stream's attach
	// was still in flight. Each attach carries a sequence number so a
	// terminal event during the attach invalidates the in-flight ready
	// command instead of racing it.
	pending   map[string]*pendingAttach
	attachSeq uint64

	maxClientsPerStream int
	done                chan struct{}
}

type pendingAttach struct {
	seq    uint64
	queued []subscribeCmd
}

// NewBroadcaster creates and starts a broadcaster.
// maxClientsPerStream limits connections per stream (prevents resource exhaustion).
func NewBroadcaster(sessions SessionRegistry, clock clockwork.Clock, maxClientsPerStream int) *Broadcaster {
	b := &Broadcaster{
		commands:            make(chan broadcasterCmd, 256),
		clock:               clock,
		sessions:            sessions,
		subs:                newSubscriptionRegistry(),
		ingesting:           make(map[string]bool),
		pending:             make(map[string]*pendingAttach),
		maxClientsPerStream: maxClientsPerStream,
		done:                make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe attaches conn to streamID, creating the ingestion session on the
// first subscription. Blocks until the session is known live (or known dead):
// a subscriber must not hang forever on a page that never loads.
func (b *Broadcaster) Subscribe(streamID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	b.commands <- subscribeCmd{streamID: streamID, connection: conn, errorChannel: errCh}

	timer := b.clock.NewTimer(attachTimeout + commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("subscribe timed out after %v", attachTimeout+commandTimeout)
	}
}

// Unsubscribe detaches conn. Idempotent; no-op for unknown connections.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.commands <- unsubscribeCmd{connection: conn}
}

// Deliver fans one delivery batch out to every live subscriber of streamID.
// Called by stream sessions; batches arrive here in emission order and are
// forwarded in that order.
func (b *Broadcaster) Deliver(streamID string, msgs []domain.Message) {
	payload, err := json.Marshal(msgs)
	if err != nil {
		slog.Error("Failed to marshal delivery batch", "stream_id", streamID, "error", err)
		return
	}
	b.commands <- deliverCmd{streamID: streamID, payload: payload, count: len(msgs)}
}

// StreamOffline handles a session's terminal event: one offline notice per
// subscriber, connections closed, subscriptions and session removed.
func (b *Broadcaster) StreamOffline(streamID string) {
	b.commands <- streamOfflineCmd{streamID: streamID}
}

// Status returns the fan-out state for one stream. Zero value on timeout.
func (b *Broadcaster) Status(streamID string) StreamStatus {
	replyCh := make(chan StreamStatus, 1)
	b.commands <- statusCmd{streamID: streamID, replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case status := <-replyCh:
		return status
	case <-timer.Chan():
		slog.Warn("Status command timed out", "stream_id", streamID)
		return StreamStatus{}
	}
}

// Stop shuts the broadcaster down, closing all client connections. Blocks
// until the actor goroutine has exited or timeout is reached.
func (b *Broadcaster) Stop() {
	b.commands <- stopCmd{}

	timer := b.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", stopTimeout)
		metrics.BroadcasterStopTimeoutsTotal.Inc()
	}
}

func (b *Broadcaster) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			metrics.BroadcasterPanicsTotal.Inc()
			b.closeAllClients("broadcaster panic")
			close(b.done)
		}
	}()

	depthTicker := b.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(b.commands)
			metrics.BroadcasterCommandChannelDepth.Set(float64(depth))
			if depth > 200 { // 80% of 256
				slog.Warn("Command channel near capacity", "depth", depth, "capacity", cap(b.commands))
			}

		case cmd := <-b.commands:
			switch c := cmd.(type) {
			case subscribeCmd:
				b.handleSubscribe(c)
			case unsubscribeCmd:
				b.handleUnsubscribe(c.connection)
			case deliverCmd:
				b.handleDeliver(c)
			case streamOfflineCmd:
				b.handleStreamOffline(c.streamID)
			case sessionReadyCmd:
				b.handleSessionReady(c)
			case statusCmd:
				c.replyChannel <- StreamStatus{
					Ingesting:   b.ingesting[c.streamID],
					Subscribers: b.subs.count(c.streamID),
				}
			case stopCmd:
				b.handleStop()
				close(b.done)
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (b *Broadcaster) handleSubscribe(c subscribeCmd) {
	if b.subs.count(c.streamID)+b.pendingCount(c.streamID) >= b.maxClientsPerStream {
		slog.Warn("Rejecting client: max clients reached", "stream_id", c.streamID, "max_clients", b.maxClientsPerStream)
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients per stream (%d) reached", b.maxClientsPerStream)
		return
	}

	// Session already live - register directly.
	if b.ingesting[c.streamID] {
		b.register(c)
		return
	}

	// Attach already in flight - queue behind it.
	if p, inFlight := b.pending[c.streamID]; inFlight {
		p.queued = append(p.queued, c)
		return
	}

	// First subscriber for this stream: kick off the attach without blocking
	// the actor. The session outlives the subscribing request, so the attach
	// gets its own deadline rather than the request context.
	b.attachSeq++
	b.pending[c.streamID] = &pendingAttach{seq: b.attachSeq, queued: []subscribeCmd{c}}
	streamID, seq := c.streamID, b.attachSeq
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), attachTimeout)
		defer cancel()
		_, err := b.sessions.GetOrCreate(ctx, streamID)
		b.commands <- sessionReadyCmd{streamID: streamID, seq: seq, err: err}
	}()
}

func (b *Broadcaster) pendingCount(streamID string) int {
	if p, ok := b.pending[streamID]; ok {
		return len(p.queued)
	}
	return 0
}

func (b *Broadcaster) handleSessionReady(c sessionReadyCmd) {
	p, exists := b.pending[c.streamID]
	if !exists || p.seq != c.seq {
		// The attach this ready belongs to was already resolved, either by a
		// terminal event flushing its subscribers or by a later attach.
		return
	}
	delete(b.pending, c.streamID)

	if c.err != nil {
		// No session came up. Each waiting subscriber gets the terminal
		// notice and is closed; nothing was registered.
		slog.Warn("Session attach failed", "stream_id", c.streamID, "error", c.err)
		for _, sub := range p.queued {
			_ = sub.connection.WriteMessage(websocket.TextMessage, offlineNotice)
			_ = sub.connection.Close()
			sub.errorChannel <- c.err
		}
		return
	}

	b.ingesting[c.streamID] = true
	for _, sub := range p.queued {
		b.register(sub)
	}
}

func (b *Broadcaster) register(c subscribeCmd) {
	cl := &client{
		id:     uuid.New(),
		conn:   c.connection,
		writer: newClientWriter(c.connection, b.clock),
	}
	b.subs.subscribe(cl, c.streamID)

	metrics.BroadcasterConnectedClients.Inc()
	metrics.BroadcasterStreamsActive.Set(float64(b.subs.streamCount()))

	slog.Debug("Client subscribed", "stream_id", c.streamID, "client_id", cl.id.String(), "total_clients", b.subs.count(c.streamID))
	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnsubscribe(conn *websocket.Conn) {
	if b.dropPending(conn) {
		// Gave up while its attach was still in flight; never registered.
		return
	}

	streamID, _ := b.subs.streamIDFor(conn)
	cl, ok := b.subs.unsubscribe(conn)
	if !ok {
		return
	}

	cl.writer.stop()
	metrics.BroadcasterConnectedClients.Dec()
	metrics.BroadcasterStreamsActive.Set(float64(b.subs.streamCount()))

	slog.Debug("Client unsubscribed", "stream_id", streamID, "client_id", cl.id.String(), "remaining_clients", b.subs.count(streamID))
}

// dropPending removes conn from any pending attach queue. Reports whether it
// was found there.
func (b *Broadcaster) dropPending(conn *websocket.Conn) bool {
	for _, p := range b.pending {
		for i, sub := range p.queued {
			if sub.connection == conn {
				p.queued = append(p.queued[:i], p.queued[i+1:]...)
				sub.errorChannel <- fmt.Errorf("subscription cancelled")
				return true
			}
		}
	}
	return false
}

func (b *Broadcaster) handleDeliver(c deliverCmd) {
	clients := b.subs.connectionsFor(c.streamID)
	if len(clients) == 0 {
		return
	}

	var slow []*websocket.Conn
	for conn, cl := range clients {
		select {
		case cl.writer.sendChannel <- c.payload:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "stream_id", c.streamID)
		metrics.BroadcasterSlowClientsEvicted.Inc()
		b.handleUnsubscribe(conn)
	}

	metrics.BroadcasterBatchesTotal.Inc()
}

func (b *Broadcaster) handleStreamOffline(streamID string) {
	delete(b.ingesting, streamID)

	// A terminal event can arrive while the attach that triggered it is still
	// in flight. Subscribers waiting on that attach get the same notice as
	// registered ones; the abandoned ready command is dropped by its stale
	// sequence number, so the next subscriber starts a fresh attach.
	var flushed int
	if p, ok := b.pending[streamID]; ok {
		delete(b.pending, streamID)
		for _, sub := range p.queued {
			_ = sub.connection.WriteMessage(websocket.TextMessage, offlineNotice)
			metrics.BroadcasterOfflineNoticesTotal.Inc()
			_ = sub.connection.Close()
			sub.errorChannel <- domain.ErrOffline
		}
		flushed = len(p.queued)
	}

	clients := b.subs.connectionsFor(streamID)
	closing := make([]*client, 0, len(clients))
	for _, cl := range clients {
		closing = append(closing, cl)
	}

	for _, cl := range closing {
		b.subs.unsubscribe(cl.conn)

		// Best effort: enqueue the notice, then drain-and-close so it still
		// goes out ahead of the close frame.
		select {
		case cl.writer.sendChannel <- offlineNotice:
			metrics.BroadcasterOfflineNoticesTotal.Inc()
		default:
		}
		cl.writer.stopGraceful("stream ended")
		metrics.BroadcasterConnectedClients.Dec()
	}
	metrics.BroadcasterStreamsActive.Set(float64(b.subs.streamCount()))

	slog.Info("Stream offline, subscribers closed", "stream_id", streamID, "closed_clients", len(closing), "flushed_pending", flushed)

	// The session loop has already emitted its terminal event; removal stops
	// it for good and releases the browser page.
	go b.sessions.Remove(streamID)
}

func (b *Broadcaster) handleStop() {
	total := b.subs.totalClients()
	slog.Info("Broadcaster shutting down", "streams", b.subs.streamCount(), "total_clients", total)
	b.closeAllClients("Server shutting down")
	slog.Info("Broadcaster shutdown complete", "disconnected_clients", total)
}

// closeAllClients closes every client connection with the given reason.
// Used during panic recovery and graceful shutdown.
func (b *Broadcaster) closeAllClients(reason string) {
	for conn := range b.subs.streamByConn {
		if cl, ok := b.subs.unsubscribe(conn); ok {
			cl.writer.stopGraceful(reason)
		}
	}
	for streamID, p := range b.pending {
		for _, sub := range p.queued {
			_ = sub.connection.Close()
			sub.errorChannel <- fmt.Errorf("broadcaster stopped")
		}
		delete(b.pending, streamID)
	}
	b.ingesting = make(map[string]bool)
	metrics.BroadcasterConnectedClients.Set(0)
	metrics.BroadcasterStreamsActive.Set(0)
}
