package relay

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/quickfs/relay/pkg/api"
	"github.com/quickfs/relay/pkg/logger"
	"github.com/quickfs/relay/pkg/network/websocket"
)

// Session is one host's advertised transfer: the file metadata, the
// host connection, and the receivers joined so far. The session lives
// exactly as long as its host connection.
type Session struct {
	Id        string
	Meta      api.FileInfo
	CreatedAt time.Time

	host *websocket.WS

	mu        sync.RWMutex
	receivers []*Receiver

	log *logger.Logger
}

// Receiver is a party joined to a session. The id comes from a much
// larger space than session ids so it cannot be guessed from the
// rendezvous code.
type Receiver struct {
	Id          string
	Name        string
	PublicKey   string
	ConnectedAt time.Time

	conn *websocket.WS
}

func newSession(id string, host *websocket.WS, meta api.FileInfo, log *logger.Logger) *Session {
	return &Session{
		Id:        id,
		Meta:      meta,
		CreatedAt: time.Now(),
		host:      host,
		log:       log.Extend(log.With().Str("sid", id)),
	}
}

// Join registers a new receiver at the tail of the list. Join order is
// the pairing order: the receiver at the head is the active one, the
// peer the host directs its offers at.
func (s *Session) Join(name string, publicKey string, conn *websocket.WS) *Receiver {
	r := &Receiver{
		Id:          newReceiverId(),
		Name:        name,
		PublicKey:   publicKey,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
	s.mu.Lock()
	s.receivers = append(s.receivers, r)
	s.mu.Unlock()
	receiversLive.Inc()
	return r
}

// Leave removes a receiver by id, keeping the order of the remainder.
// A no-op when the receiver is already gone.
func (s *Session) Leave(id string) {
	removed := false
	s.mu.Lock()
	for i, r := range s.receivers {
		if r.Id == id {
			s.receivers = append(s.receivers[:i], s.receivers[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()
	if removed {
		receiversLive.Dec()
	}
}

func (s *Session) find(id string) *Receiver {
	if id == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.receivers {
		if r.Id == id {
			return r
		}
	}
	return nil
}

// Snapshot projects the current receivers to their display-safe fields,
// in join order. The copy is taken under the lock so the caller can do
// channel I/O without holding it.
func (s *Session) Snapshot() []api.ReceiverInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.ReceiverInfo, len(s.receivers))
	for i, r := range s.receivers {
		out[i] = api.ReceiverInfo{
			Id:          r.Id,
			Name:        r.Name,
			PublicKey:   r.PublicKey,
			ConnectedAt: r.ConnectedAt,
		}
	}
	return out
}

func newReceiverId() string { return uuid.Must(uuid.NewV4()).String() }
