package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	s := &subscriber{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go s.writePump()
	return s
}

func (s *subscriber) writePump() {
	defer s.conn.Close()
	for msg := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster pushes the active session to every subscriber on each change
// and on a fixed snapshot interval.
type Broadcaster struct {
	store  *Store
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*subscriber]bool
	seq     uint64
}

func NewBroadcaster(store *Store, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		store:   store,
		logger:  logger,
		clients: make(map[*subscriber]bool),
	}
}

// Run sends a snapshot every interval until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case <-ticker.C:
			b.Publish(ctx)
		}
	}
}

// AddClient queues the current state for conn, then registers it.
func (b *Broadcaster) AddClient(ctx context.Context, conn *websocket.Conn) *subscriber {
	s := newSubscriber(conn)

	data, err := b.message(ctx)
	if err != nil {
		b.logger.Warn("ws snapshot failed", zap.Error(err))
	} else {
		s.send <- data
	}

	b.mu.Lock()
	b.clients[s] = true
	b.mu.Unlock()
	return s
}

func (b *Broadcaster) RemoveClient(s *subscriber) {
	b.mu.Lock()
	if _, ok := b.clients[s]; ok {
		delete(b.clients, s)
		close(s.send)
	}
	b.mu.Unlock()
}

// Publish sends the current active session, or null, to every subscriber.
func (b *Broadcaster) Publish(ctx context.Context) {
	data, err := b.message(ctx)
	if err != nil {
		b.logger.Warn("ws publish failed", zap.Error(err))
		return
	}

	b.mu.RLock()
	clients := make([]*subscriber, 0, len(b.clients))
	for s := range b.clients {
		clients = append(clients, s)
	}
	b.mu.RUnlock()

	for _, s := range clients {
		select {
		case s.send <- data:
		default:
			b.logger.Info("ws subscriber too slow, disconnecting")
			b.RemoveClient(s)
		}
	}
}

func (b *Broadcaster) message(ctx context.Context) ([]byte, error) {
	op, err := b.store.Active(ctx)
	if err != nil && !errors.Is(err, ErrNoActiveSession) {
		return nil, err
	}
	payload, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	return json.Marshal(client.WSMessage{Type: client.MsgActive, Seq: seq, Payload: payload})
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.clients {
		delete(b.clients, s)
		close(s.send)
	}
}
