package relay

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/quickfs/relay/pkg/api"
	"github.com/quickfs/relay/pkg/config"
	"github.com/quickfs/relay/pkg/logger"
	"github.com/quickfs/relay/pkg/network/websocket"
)

// Hub serves the two signaling entry points and runs one handler
// goroutine per accepted connection.
type Hub struct {
	conf     config.Relay
	registry *Registry
	wu       *websocket.Upgrader
	log      *logger.Logger
}

func NewHub(conf config.Relay, log *logger.Logger) *Hub {
	wu := &websocket.DefaultUpgrader
	if conf.Origin != "" {
		wu = websocket.NewUpgrader(conf.Origin)
	}
	return &Hub{conf: conf, registry: NewRegistry(), wu: wu, log: log}
}

func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	s := r.PathPrefix("/api").Subrouter()
	s.HandleFunc("/upload", h.handleUpload).Methods(http.MethodGet)
	s.HandleFunc("/join/{id}", h.handleJoin).Methods(http.MethodGet)
	return r
}

// handleUpload starts a host session. The file metadata is validated
// before the upgrade, so a bad request never creates state.
func (h *Hub) handleUpload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	meta := api.FileInfo{FileName: q.Get("filename"), FileType: q.Get("filetype")}
	size := q.Get("filesize")
	if meta.FileName == "" || meta.FileType == "" || size == "" {
		http.Error(w, "missing required query parameters: filename, filetype, filesize", http.StatusBadRequest)
		return
	}
	var err error
	if meta.FileSize, err = strconv.ParseInt(size, 10, 64); err != nil || meta.FileSize < 0 {
		http.Error(w, "invalid filesize parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.wu.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied with a client error
		h.log.Error().Err(err).Msg("host upgrade failed")
		return
	}

	s := h.registry.Create(websocket.NewServerWithConn(conn, h.log), meta, h.log)
	s.send(s.host, api.UploadCreated, api.Created{Id: s.Id})
	s.log.Info().Msgf("Created session for file %v (%v bytes)", meta.FileName, meta.FileSize)

	go h.serveHost(s)
}

// serveHost reads host messages until the connection dies. Host
// disconnect is the only teardown path for a session.
func (h *Hub) serveHost(s *Session) {
	defer func() {
		s.host.Close()
		h.registry.Remove(s.Id)
		s.log.Info().Msg("Session closed")
	}()
	for {
		m, err := s.host.Read()
		if err != nil {
			s.log.Debug().Msgf("host connection: %v", err)
			return
		}
		var in api.In
		if err := api.Unmarshal(m, &in); err != nil {
			s.log.Debug().Msgf("host frame: %v", err)
			return
		}
		switch in.T {
		case api.GetReceivers:
			s.NotifyReceivers()
		case api.WebrtcOffer, api.WebrtcAnswer, api.WebrtcIce:
			if sig := api.Unwrap[api.Signal](in.Payload); sig != nil {
				s.Forward(in.T, sig, true)
			}
		default:
			// unknown kinds don't terminate the connection
		}
	}
}

// handleJoin starts a receiver connection. Unknown session ids are the
// only case reported as not found, and only before the upgrade.
func (h *Hub) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, err := h.registry.Find(id)
	if err != nil {
		http.Error(w, "upload not found", http.StatusNotFound)
		return
	}

	conn, err := h.wu.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("receiver upgrade failed")
		return
	}

	go h.serveReceiver(s, websocket.NewServerWithConn(conn, h.log))
}

// serveReceiver requires a join request as the very first message and
// abandons the connection otherwise, without registering anything.
func (h *Hub) serveReceiver(s *Session, sock *websocket.WS) {
	defer sock.Close()

	m, err := sock.Read()
	if err != nil {
		return
	}
	var in api.In
	if err := api.Unmarshal(m, &in); err != nil || in.T != api.JoinRequest {
		s.log.Debug().Msgf("expected %v, got %v", api.JoinRequest, in.T)
		return
	}
	join := api.Unwrap[api.Join](in.Payload)
	if join == nil {
		return
	}

	rcv := s.Join(join.Name, join.PublicKey, sock)
	s.log.Info().Msgf("Receiver %v (%v) joined", join.Name, rcv.Id)
	defer func() {
		s.Leave(rcv.Id)
		s.NotifyReceivers()
		s.log.Info().Msgf("Receiver %v left", rcv.Id)
	}()

	s.send(sock, api.FileMetadata, s.Meta)
	s.NotifyReceivers()

	for {
		m, err := sock.Read()
		if err != nil {
			return
		}
		var in api.In
		if err := api.Unmarshal(m, &in); err != nil {
			return
		}
		switch in.T {
		case api.WebrtcAnswer:
			if sig := api.Unwrap[api.Signal](in.Payload); sig != nil {
				// the relay, not the client, vouches for the sender
				sig.SenderId = rcv.Id
				s.Forward(in.T, sig, false)
			}
		case api.WebrtcIce:
			if sig := api.Unwrap[api.Signal](in.Payload); sig != nil {
				sig.PeerId = rcv.Id
				s.Forward(in.T, sig, false)
			}
		default:
		}
	}
}
