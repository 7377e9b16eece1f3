package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a write may block on one slow socket before
// the hub gives up and drops the subscriber.
const writeWait = 10 * time.Second

// subscriber pairs a websocket connection with a write lock so state
// broadcasts and read-loop replies never interleave frames on the wire.
type subscriber struct {
	conn     *websocket.Conn
	session  uint64
	mu       sync.Mutex
	lastSeen time.Time

	lastCommandSeq atomic.Uint64
}

// WriteMessage sends one frame under the write lock with the standard
// deadline applied.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

// SessionID distinguishes this subscription from any later socket the
// same owner opens. A displaced read loop quoting a stale id cannot
// tear down its replacement.
func (s *subscriber) SessionID() uint64 {
	return s.session
}

// LastCommandSeq reports the highest acknowledged client command
// sequence, letting the session loop spot retransmits.
func (s *subscriber) LastCommandSeq() uint64 {
	return s.lastCommandSeq.Load()
}

// StoreLastCommandSeq records a freshly acknowledged sequence number.
func (s *subscriber) StoreLastCommandSeq(seq uint64) {
	s.lastCommandSeq.Store(seq)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.Close()
}
