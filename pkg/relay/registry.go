package relay

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/quickfs/relay/pkg/api"
	"github.com/quickfs/relay/pkg/com"
	"github.com/quickfs/relay/pkg/logger"
	"github.com/quickfs/relay/pkg/network/websocket"
)

// session ids are short on purpose: they are the rendezvous codes
// people pass around out of band
const sessionIdBytes = 4

// Registry is the process-wide table of live sessions.
// Safe for concurrent use from any number of connection handlers.
type Registry struct {
	sessions com.Map[string, *Session]
}

func NewRegistry() *Registry {
	return &Registry{sessions: com.NewMap[string, *Session]()}
}

// Create allocates a fresh session id, builds the session around the
// host connection, and publishes it only when fully constructed.
// An id collision is resolved by retry.
func (r *Registry) Create(host *websocket.WS, meta api.FileInfo, log *logger.Logger) *Session {
	for {
		s := newSession(newSessionId(), host, meta, log)
		if r.sessions.PutIfAbsent(s.Id, s) {
			sessionsLive.Inc()
			return s
		}
	}
}

func (r *Registry) Find(id string) (*Session, error) { return r.sessions.Find(id) }

// Remove drops a session from the table. Idempotent, so two racing
// teardown paths cannot skew the gauge.
func (r *Registry) Remove(id string) {
	if r.sessions.Remove(id) {
		sessionsLive.Dec()
	}
}

func (r *Registry) Len() int { return r.sessions.Len() }

func newSessionId() string {
	bytes := make([]byte, sessionIdBytes)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
