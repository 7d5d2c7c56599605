package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/session"
)

// fakeSessions records session registry calls without running real sessions.
type fakeSessions struct {
	mu        sync.Mutex
	attachErr error
	created   map[string]int
	removed   []string
	// onAttach, if set, runs during GetOrCreate before it returns.
	onAttach func(streamID string)
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{created: make(map[string]int)}
}

func (f *fakeSessions) setOnAttach(hook func(streamID string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onAttach = hook
}

func (f *fakeSessions) GetOrCreate(_ context.Context, streamID string) (*session.Session, error) {
	f.mu.Lock()
	hook := f.onAttach
	if f.attachErr != nil {
		defer f.mu.Unlock()
		return nil, f.attachErr
	}
	f.created[streamID]++
	f.mu.Unlock()

	if hook != nil {
		hook(streamID)
	}
	return nil, nil
}

func (f *fakeSessions) Remove(streamID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, streamID)
}

func (f *fakeSessions) createdCount(streamID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[streamID]
}

func (f *fakeSessions) removedStreams() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

// testBroadcaster sets up a Broadcaster behind a test WebSocket server.
func testBroadcaster(t *testing.T, sessions *fakeSessions, maxClients int) (*Broadcaster, func(streamID string) *ws.Conn) {
	t.Helper()

	b := NewBroadcaster(sessions, clockwork.NewRealClock(), maxClients)
	t.Cleanup(func() { b.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		streamID := r.URL.Query().Get("stream")
		if err := b.Subscribe(streamID, conn); err != nil {
			return
		}

		go func() {
			defer b.Unsubscribe(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(func() { server.Close() })

	dial := func(streamID string) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?stream=" + streamID
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return b, dial
}

func readBatch(t *testing.T, conn *ws.Conn) []domain.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msgs []domain.Message
	require.NoError(t, json.Unmarshal(data, &msgs))
	return msgs
}

func waitForSubscribers(t *testing.T, b *Broadcaster, streamID string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return b.Status(streamID).Subscribers == want
	}, 2*time.Second, 10*time.Millisecond)
}

func testMessage(author, text string) domain.Message {
	return domain.Message{
		Author:    domain.Author{Name: author},
		Body:      domain.Body{Kind: domain.BodyPlainText, Text: text},
		Timestamp: "0:01",
	}
}

func TestDeliverFansOutToAllSubscribers(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 50)

	first := dial("abc123")
	second := dial("abc123")
	waitForSubscribers(t, b, "abc123", 2)

	b.Deliver("abc123", []domain.Message{testMessage("X", "hi")})

	for _, conn := range []*ws.Conn{first, second} {
		batch := readBatch(t, conn)
		require.Len(t, batch, 1)
		assert.Equal(t, "X", batch[0].Author.Name)
		assert.Equal(t, "hi", batch[0].Body.Text)
	}
}

func TestDeliverOnlyReachesSubscribedStream(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 50)

	subscribed := dial("abc123")
	other := dial("xyz789")
	waitForSubscribers(t, b, "abc123", 1)
	waitForSubscribers(t, b, "xyz789", 1)

	b.Deliver("abc123", []domain.Message{testMessage("X", "hi")})

	batch := readBatch(t, subscribed)
	require.Len(t, batch, 1)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "unsubscribed stream must receive nothing")
}

func TestDeliverPreservesBatchOrder(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 50)

	conn := dial("abc123")
	waitForSubscribers(t, b, "abc123", 1)

	b.Deliver("abc123", []domain.Message{testMessage("X", "one")})
	b.Deliver("abc123", []domain.Message{testMessage("X", "two")})
	b.Deliver("abc123", []domain.Message{testMessage("X", "three")})

	var texts []string
	for i := 0; i < 3; i++ {
		batch := readBatch(t, conn)
		require.Len(t, batch, 1)
		texts = append(texts, batch[0].Body.Text)
	}
	assert.Equal(t, []string{"one", "two", "three"}, texts)
}

func TestFirstSubscriberCreatesSessionOnce(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 50)

	dial("abc123")
	dial("abc123")
	dial("abc123")
	waitForSubscribers(t, b, "abc123", 3)

	assert.Equal(t, 1, sessions.createdCount("abc123"))
	assert.True(t, b.Status("abc123").Ingesting)
}

func TestStreamOfflineSendsNoticeAndCloses(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 50)

	first := dial("abc123")
	second := dial("abc123")
	bystander := dial("xyz789")
	waitForSubscribers(t, b, "abc123", 2)
	waitForSubscribers(t, b, "xyz789", 1)

	b.StreamOffline("abc123")

	for _, conn := range []*ws.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"offlineDetected":true}`, string(data))

		// Next read hits the close frame.
		_, _, err = conn.ReadMessage()
		require.Error(t, err)
		assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "expected normal closure, got %v", err)
	}

	require.Eventually(t, func() bool {
		removed := sessions.removedStreams()
		return len(removed) == 1 && removed[0] == "abc123"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, b.Status("abc123").Subscribers)
	assert.False(t, b.Status("abc123").Ingesting)

	// The bystander's stream is untouched.
	require.NoError(t, bystander.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bystander.ReadMessage()
	assert.Error(t, err) // timeout, not a received frame
	assert.Equal(t, 1, b.Status("xyz789").Subscribers)
}

func TestSubscribeAttachFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.attachErr = domain.ErrSourceUnavailable
	_, dial := testBroadcaster(t, sessions, 50)

	conn := dial("abc123")

	// The failed attach surfaces as an immediate terminal notice.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"offlineDetected":true}`, string(data))
}

func TestOfflineDuringAttachClosesPendingSubscribers(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 50)

	// Terminal event lands before the attach completes, so the subscriber is
	// still queued when the stream goes offline. Happens for real when the
	// chat page reports the stream ended right as the session starts.
	sessions.setOnAttach(func(streamID string) { b.StreamOffline(streamID) })

	conn := dial("abc123")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"offlineDetected":true}`, string(data))

	_, _, err = conn.ReadMessage()
	require.Error(t, err, "connection must be closed after the offline notice")

	require.Eventually(t, func() bool {
		removed := sessions.removedStreams()
		return len(removed) == 1 && removed[0] == "abc123"
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, b.Status("abc123").Ingesting)
	assert.Equal(t, 0, b.Status("abc123").Subscribers)

	// The stream is not poisoned: the next subscriber starts a fresh attach
	// and gets a working session.
	sessions.setOnAttach(nil)
	fresh := dial("abc123")
	waitForSubscribers(t, b, "abc123", 1)
	assert.Equal(t, 2, sessions.createdCount("abc123"))

	b.Deliver("abc123", []domain.Message{testMessage("X", "back online")})
	batch := readBatch(t, fresh)
	require.Len(t, batch, 1)
	assert.Equal(t, "back online", batch[0].Body.Text)
}

func TestMaxClientsPerStream(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 1)

	keeper := dial("abc123")
	waitForSubscribers(t, b, "abc123", 1)

	rejected := dial("abc123")
	require.NoError(t, rejected.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := rejected.ReadMessage()
	assert.Error(t, err, "over-limit connection must be closed")

	// The accepted client still receives broadcasts.
	b.Deliver("abc123", []domain.Message{testMessage("X", "hi")})
	batch := readBatch(t, keeper)
	require.Len(t, batch, 1)
}

func TestUnsubscribeWhileAttachInFlightDropsPendingSubscriber(t *testing.T) {
	sessions := newFakeSessions()
	release := make(chan struct{})
	sessions.setOnAttach(func(string) { <-release })

	b := NewBroadcaster(sessions, clockwork.NewRealClock(), 50)
	t.Cleanup(func() { b.Stop() })

	conn := &ws.Conn{}
	errCh := make(chan error, 1)
	go func() { errCh <- b.Subscribe("abc123", conn) }()

	require.Eventually(t, func() bool {
		return sessions.createdCount("abc123") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The client gives up while its attach is still in flight.
	b.Unsubscribe(conn)

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after Unsubscribe")
	}

	close(release)

	// The attach still completes and marks the stream ingesting, but the
	// dropped connection is never registered.
	require.Eventually(t, func() bool {
		return b.Status("abc123").Ingesting
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, b.Status("abc123").Subscribers)
}

func TestUnsubscribeIsIdempotentAndScoped(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 50)

	leaver := dial("abc123")
	stayer := dial("abc123")
	waitForSubscribers(t, b, "abc123", 2)

	leaver.Close()
	waitForSubscribers(t, b, "abc123", 1)

	// Remaining subscriber keeps receiving.
	b.Deliver("abc123", []domain.Message{testMessage("X", "still here")})
	batch := readBatch(t, stayer)
	require.Len(t, batch, 1)
	assert.Equal(t, "still here", batch[0].Body.Text)
}

func TestStopClosesAllClients(t *testing.T) {
	sessions := newFakeSessions()
	b, dial := testBroadcaster(t, sessions, 50)

	conn := dial("abc123")
	waitForSubscribers(t, b, "abc123", 1)

	b.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "expected normal closure, got %v", err)
}
