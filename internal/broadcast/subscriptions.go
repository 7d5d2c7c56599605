package broadcast

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client is one subscribed connection and its write goroutine.
type client struct {
	id     uuid.UUID
	conn   *websocket.Conn
	writer *clientWriter
}

// subscriptionRegistry maps connection -> stream id; many connections may
// subscribe to one stream, a connection holds at most one subscription.
// Owned by the Broadcaster actor and only touched from its goroutine.
type subscriptionRegistry struct {
	streamByConn    map[*websocket.Conn]string
	clientsByStream map[string]map[*websocket.Conn]*client
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		streamByConn:    make(map[*websocket.Conn]string),
		clientsByStream: make(map[string]map[*websocket.Conn]*client),
	}
}

func (r *subscriptionRegistry) subscribe(c *client, streamID string) {
	r.streamByConn[c.conn] = streamID
	clients, ok := r.clientsByStream[streamID]
	if !ok {
		clients = make(map[*websocket.Conn]*client)
		r.clientsByStream[streamID] = clients
	}
	clients[c.conn] = c
}

// unsubscribe removes the connection's subscription. Idempotent: a
// connection closing explicitly can race its offline-induced close, and the
// second removal must be a no-op.
func (r *subscriptionRegistry) unsubscribe(conn *websocket.Conn) (*client, bool) {
	streamID, ok := r.streamByConn[conn]
	if !ok {
		return nil, false
	}
	delete(r.streamByConn, conn)

	clients := r.clientsByStream[streamID]
	c := clients[conn]
	delete(clients, conn)
	if len(clients) == 0 {
		delete(r.clientsByStream, streamID)
	}
	return c, c != nil
}

// connectionsFor returns the clients subscribed to streamID, order
// irrelevant. The returned map is the live set; callers must not mutate it
// while iterating with removal intent - collect first, then unsubscribe.
func (r *subscriptionRegistry) connectionsFor(streamID string) map[*websocket.Conn]*client {
	return r.clientsByStream[streamID]
}

func (r *subscriptionRegistry) streamIDFor(conn *websocket.Conn) (string, bool) {
	streamID, ok := r.streamByConn[conn]
	return streamID, ok
}

func (r *subscriptionRegistry) count(streamID string) int {
	return len(r.clientsByStream[streamID])
}

func (r *subscriptionRegistry) streamCount() int {
	return len(r.clientsByStream)
}

func (r *subscriptionRegistry) totalClients() int {
	return len(r.streamByConn)
}
