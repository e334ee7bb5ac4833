// Package api defines the signaling protocol between the relay
// and its host/receiver clients.
//
// Each message is a JSON-encoded envelope of the following structure:
//
//	type    - (required) one of the predefined message tags;
//	payload - (optional) tag-specific data.
//
// Offer, answer, and candidate bodies are carried verbatim: the relay
// reads and rewrites only the routing tags (sender_id, receiver_id,
// peer_id) and never looks inside the SDP or ICE data.
//
// Example:
//
//	{"type":"webrtc_offer","payload":{"receiver_id":"...","offer":{...}}}
package api

import (
	"time"

	"github.com/goccy/go-json"
)

// PT is a message tag.
type PT string

const (
	UploadCreated   PT = "upload_created"
	GetReceivers    PT = "get_receivers"
	ReceiversUpdate PT = "receivers_update"
	JoinRequest     PT = "join_request"
	FileMetadata    PT = "file_metadata"
	WebrtcOffer     PT = "webrtc_offer"
	WebrtcAnswer    PT = "webrtc_answer"
	WebrtcIce       PT = "webrtc_ice_candidate"
)

// HostTag marks the host as a signaling peer in routing fields.
const HostTag = "host"

// In is an incoming envelope. The payload is kept raw for a 2-pass
// unmarshal into the tag-specific structure.
type In struct {
	T       PT              `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Out is an outgoing envelope.
type Out struct {
	T       PT  `json:"type"`
	Payload any `json:"payload,omitempty"`
}

// FileInfo describes the advertised file. It is set by the host on
// session creation and never altered.
type FileInfo struct {
	FileName string `json:"filename"`
	FileType string `json:"filetype"`
	FileSize int64  `json:"filesize"`
}

// Created is the upload_created payload.
type Created struct {
	Id string `json:"id"`
}

// Join is the join_request payload. The public key is optional and
// carried opaquely for end-to-end encryption between the peers.
type Join struct {
	Name      string `json:"name"`
	PublicKey string `json:"public_key,omitempty"`
}

// ReceiverInfo is one element of a receivers_update payload,
// a receiver projected to its display-safe fields.
type ReceiverInfo struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	PublicKey   string    `json:"public_key,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Signal carries a WebRTC handshake message of any direction.
// Only the routing tags are typed, the bodies stay raw.
type Signal struct {
	SenderId   string          `json:"sender_id,omitempty"`
	ReceiverId string          `json:"receiver_id,omitempty"`
	PeerId     string          `json:"peer_id,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

// Unwrap unmarshals a raw payload into T, nil if it doesn't fit.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

func Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
