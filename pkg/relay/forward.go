package relay

import (
	"github.com/quickfs/relay/pkg/api"
	"github.com/quickfs/relay/pkg/network/websocket"
)

// Forward dispatches one handshake envelope to its counterpart side.
// The bodies stay opaque, only the routing tags are rewritten. A miss
// on the target receiver is a race with its disconnect, never an
// error: the message is dropped and the host learns about the
// departure from the membership update instead.
func (s *Session) Forward(t api.PT, sig *api.Signal, fromHost bool) {
	switch t {
	case api.WebrtcOffer:
		// only the host makes offers
		if !fromHost {
			return
		}
		r := s.find(sig.ReceiverId)
		if r == nil {
			s.drop(t, sig.ReceiverId)
			return
		}
		s.send(r.conn, t, api.Signal{SenderId: api.HostTag, Offer: sig.Offer})
	case api.WebrtcAnswer:
		if fromHost {
			return
		}
		s.send(s.host, t, api.Signal{ReceiverId: sig.SenderId, Answer: sig.Answer})
	case api.WebrtcIce:
		if fromHost {
			r := s.find(sig.PeerId)
			if r == nil {
				s.drop(t, sig.PeerId)
				return
			}
			s.send(r.conn, t, api.Signal{PeerId: api.HostTag, Candidate: sig.Candidate})
		} else {
			s.send(s.host, t, api.Signal{PeerId: sig.PeerId, Candidate: sig.Candidate})
		}
	}
}

// NotifyReceivers reports the current membership to the host. The head
// of the reported list is the active receiver; hosts restart their
// handshake when that identity changes.
func (s *Session) NotifyReceivers() {
	s.send(s.host, api.ReceiversUpdate, s.Snapshot())
}

func (s *Session) send(conn *websocket.WS, t api.PT, payload any) {
	m, err := api.Marshal(api.Out{T: t, Payload: payload})
	if err != nil {
		s.log.Error().Err(err).Msgf("can't marshal %v", t)
		return
	}
	conn.Write(m)
	messagesSent.WithLabelValues(string(t)).Inc()
}

func (s *Session) drop(t api.PT, target string) {
	messagesDropped.Inc()
	s.log.Debug().Msgf("%v dropped, receiver [%v] is gone", t, target)
}
