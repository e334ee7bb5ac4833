package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
		CheckOrigin:     func(r *http.Request) bool { return true },
	},
}

// NewUpgrader returns an upgrader which accepts only the given origin.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	return &u
}
