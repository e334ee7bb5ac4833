package websocket

import (
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quickfs/relay/pkg/com"
	"github.com/quickfs/relay/pkg/logger"
)

const (
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
)

// WS wraps a websocket connection into a single-reader, many-writers
// socket. Reads are owned by exactly one handler goroutine, which calls
// Read in a loop. Writes may come from any number of goroutines and are
// serialized by the writer pump; a write after the socket is closed is
// dropped, not an error.
type WS struct {
	id   com.Uid
	conn deadlinedConn

	send   chan []byte
	once   sync.Once
	closed chan struct{}

	// Done is closed when the writer pump has stopped and
	// the underlying connection has been closed.
	Done chan struct{}

	log *logger.Logger
}

// NewServerWithConn wraps an already upgraded server-side connection.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) *WS {
	return newSocket(conn, true, log)
}

// NewClient dials the given address and wraps the connection.
func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	id := com.NewUid()
	ws := &WS{
		id:     id,
		conn:   deadlinedConn{sock: conn, wt: writeWait},
		send:   make(chan []byte),
		closed: make(chan struct{}),
		Done:   make(chan struct{}),
		log:    log.Extend(log.With().Str("cid", id.Short())),
	}
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		if pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongTime))
			})
		}
	})
	go ws.writer()
	ws.log.Debug().Msg("Connect")
	return ws
}

func (ws *WS) Id() com.Uid { return ws.id }

// Read blocks until the next message arrives or the connection dies.
// Only the socket's owner goroutine may call it.
func (ws *WS) Read() ([]byte, error) { return ws.conn.read() }

// Write hands the message over to the writer pump.
// Messages to an already closed socket are dropped silently.
func (ws *WS) Write(message []byte) {
	select {
	case ws.send <- message:
	case <-ws.closed:
	}
}

// Close stops the writer pump and closes the underlying connection,
// which unblocks a pending Read. Safe to call multiple times.
func (ws *WS) Close() { ws.once.Do(func() { close(ws.closed) }) }

// writer pumps messages from the send channel to the connection.
// Serializes all websocket writes, keeps the peer alive with pings.
func (ws *WS) writer() {
	ticker := time.NewTicker(pingTime)
	defer func() {
		ticker.Stop()
		_ = ws.conn.write(websocket.CloseMessage, []byte{})
		_ = ws.conn.close()
		close(ws.Done)
		ws.log.Debug().Msg("Close")
	}()
	for {
		select {
		case message := <-ws.send:
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.log.Debug().Msgf("write error: %v", err)
				ws.Close()
				return
			}
		case <-ticker.C:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				ws.Close()
				return
			}
		case <-ws.closed:
			return
		}
	}
}
