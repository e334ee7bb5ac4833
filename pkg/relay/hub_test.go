package relay

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/quickfs/relay/pkg/api"
	"github.com/quickfs/relay/pkg/config"
	"github.com/quickfs/relay/pkg/logger"
)

const uploadQuery = "/api/upload?filename=report.pdf&filetype=application%2Fpdf&filesize=2048"

func startHub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHub(config.Relay{}, logger.Default()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func wsAddr(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func dial(t *testing.T, addr string) *gws.Conn {
	t.Helper()
	c, _, err := gws.DefaultDialer.Dial(addr, nil)
	if err != nil {
		t.Fatalf("couldn't connect to %v because of %v", addr, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *gws.Conn, out api.Out) {
	t.Helper()
	data, err := api.Marshal(out)
	if err != nil {
		t.Fatalf("can't marshal %v", out.T)
	}
	if err = c.WriteMessage(gws.TextMessage, data); err != nil {
		t.Fatalf("write failed, %v", err)
	}
}

func recv(t *testing.T, c *gws.Conn) api.In {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, m, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read failed, %v", err)
	}
	var in api.In
	if err = api.Unmarshal(m, &in); err != nil {
		t.Fatalf("bad envelope %s, %v", m, err)
	}
	return in
}

func recvT(t *testing.T, c *gws.Conn, want api.PT) api.In {
	t.Helper()
	in := recv(t, c)
	if in.T != want {
		t.Fatalf("expected %v, got %v", want, in.T)
	}
	return in
}

// createSession opens a host connection and returns it with the
// session id from upload_created.
func createSession(t *testing.T, srv *httptest.Server) (*gws.Conn, string) {
	t.Helper()
	host := dial(t, wsAddr(srv, uploadQuery))
	created := api.Unwrap[api.Created](recvT(t, host, api.UploadCreated).Payload)
	if created == nil || created.Id == "" {
		t.Fatalf("no session id in upload_created")
	}
	return host, created.Id
}

// joinSession opens a receiver connection, performs the join handshake,
// and reads the membership update from the host side, returning the
// receiver id the relay assigned.
func joinSession(t *testing.T, srv *httptest.Server, host *gws.Conn, id, name string) (*gws.Conn, string) {
	t.Helper()
	rcv := dial(t, wsAddr(srv, "/api/join/"+id))
	send(t, rcv, api.Out{T: api.JoinRequest, Payload: api.Join{Name: name}})
	recvT(t, rcv, api.FileMetadata)

	update := api.Unwrap[[]api.ReceiverInfo](recvT(t, host, api.ReceiversUpdate).Payload)
	if update == nil || len(*update) == 0 {
		t.Fatalf("no receivers in the update")
	}
	last := (*update)[len(*update)-1]
	if last.Name != name {
		t.Fatalf("expected %v at the tail, got %v", name, last.Name)
	}
	return rcv, last.Id
}

func TestUploadValidation(t *testing.T) {
	srv := startHub(t)
	badRequests := []string{
		"/api/upload",
		"/api/upload?filename=a&filetype=b",
		"/api/upload?filename=a&filesize=10",
		"/api/upload?filetype=b&filesize=10",
		"/api/upload?filename=a&filetype=b&filesize=abc",
		"/api/upload?filename=a&filetype=b&filesize=-1",
	}
	for _, path := range badRequests {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%v: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %v", path, resp.StatusCode)
		}
	}
}

func TestSessionCreated(t *testing.T) {
	srv := startHub(t)
	_, id1 := createSession(t, srv)
	_, id2 := createSession(t, srv)
	if len(id1) != 8 {
		t.Errorf("unexpected session id %q", id1)
	}
	if id1 == id2 {
		t.Errorf("two live sessions share the id %v", id1)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	srv := startHub(t)
	resp, err := http.Get(srv.URL + "/api/join/beef1234")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %v", resp.StatusCode)
	}
}

func TestJoinFlow(t *testing.T) {
	srv := startHub(t)
	host, id := createSession(t, srv)

	rcv := dial(t, wsAddr(srv, "/api/join/"+id))
	send(t, rcv, api.Out{T: api.JoinRequest, Payload: api.Join{Name: "Alex"}})

	meta := api.Unwrap[api.FileInfo](recvT(t, rcv, api.FileMetadata).Payload)
	if meta == nil || meta.FileName != "report.pdf" || meta.FileType != "application/pdf" || meta.FileSize != 2048 {
		t.Errorf("bad file metadata: %+v", meta)
	}

	update := api.Unwrap[[]api.ReceiverInfo](recvT(t, host, api.ReceiversUpdate).Payload)
	if update == nil || len(*update) != 1 {
		t.Fatalf("expected a single receiver")
	}
	r := (*update)[0]
	if r.Name != "Alex" || r.Id == "" || r.ConnectedAt.IsZero() {
		t.Errorf("bad receiver info: %+v", r)
	}
}

func TestSecondJoinKeepsActiveReceiver(t *testing.T) {
	srv := startHub(t)
	host, id := createSession(t, srv)
	_, rid1 := joinSession(t, srv, host, id, "first")
	_, _ = joinSession(t, srv, host, id, "second")

	send(t, host, api.Out{T: api.GetReceivers})
	update := api.Unwrap[[]api.ReceiverInfo](recvT(t, host, api.ReceiversUpdate).Payload)
	if update == nil || len(*update) != 2 {
		t.Fatalf("expected two receivers")
	}
	if (*update)[0].Id != rid1 {
		t.Errorf("the oldest receiver is no longer the active one")
	}
}

func TestOfferRouting(t *testing.T) {
	srv := startHub(t)
	host, id := createSession(t, srv)
	rcv, rid := joinSession(t, srv, host, id, "Alex")

	send(t, host, api.Out{T: api.WebrtcOffer, Payload: map[string]any{
		"receiver_id": rid,
		"offer":       map[string]any{"type": "offer", "sdp": "v=0"},
	}})

	sig := api.Unwrap[api.Signal](recvT(t, rcv, api.WebrtcOffer).Payload)
	if sig == nil {
		t.Fatalf("no signal payload")
	}
	if sig.SenderId != api.HostTag {
		t.Errorf("expected sender %v, got %v", api.HostTag, sig.SenderId)
	}
	if !bytes.Contains(sig.Offer, []byte(`"sdp":"v=0"`)) {
		t.Errorf("offer body was not forwarded verbatim: %s", sig.Offer)
	}
}

func TestAnswerSenderIsStamped(t *testing.T) {
	srv := startHub(t)
	host, id := createSession(t, srv)
	rcv, rid := joinSession(t, srv, host, id, "Alex")

	// whatever the receiver claims, the relay stamps the real id
	send(t, rcv, api.Out{T: api.WebrtcAnswer, Payload: map[string]any{
		"sender_id": "forged",
		"answer":    map[string]any{"type": "answer", "sdp": "v=0"},
	}})

	sig := api.Unwrap[api.Signal](recvT(t, host, api.WebrtcAnswer).Payload)
	if sig == nil {
		t.Fatalf("no signal payload")
	}
	if sig.ReceiverId != rid {
		t.Errorf("expected receiver %v, got %v", rid, sig.ReceiverId)
	}
	if len(sig.Answer) == 0 {
		t.Errorf("answer body is missing")
	}
}

func TestCandidateRouting(t *testing.T) {
	srv := startHub(t)
	host, id := createSession(t, srv)
	rcv, rid := joinSession(t, srv, host, id, "Alex")

	send(t, host, api.Out{T: api.WebrtcIce, Payload: map[string]any{
		"peer_id":   rid,
		"candidate": map[string]any{"candidate": "candidate:1"},
	}})
	sig := api.Unwrap[api.Signal](recvT(t, rcv, api.WebrtcIce).Payload)
	if sig == nil || sig.PeerId != api.HostTag {
		t.Errorf("host candidate was not tagged: %+v", sig)
	}

	send(t, rcv, api.Out{T: api.WebrtcIce, Payload: map[string]any{
		"peer_id":   "bogus",
		"candidate": map[string]any{"candidate": "candidate:2"},
	}})
	sig = api.Unwrap[api.Signal](recvT(t, host, api.WebrtcIce).Payload)
	if sig == nil || sig.PeerId != rid {
		t.Errorf("receiver candidate was not stamped: %+v", sig)
	}
}

func TestOfferToGoneReceiver(t *testing.T) {
	srv := startHub(t)
	host, id := createSession(t, srv)
	rcv, rid := joinSession(t, srv, host, id, "Alex")

	_ = rcv.Close()
	update := api.Unwrap[[]api.ReceiverInfo](recvT(t, host, api.ReceiversUpdate).Payload)
	if update == nil || len(*update) != 0 {
		t.Fatalf("expected an empty membership update")
	}

	// a race with the disconnect, not an error: nothing is delivered
	// and the session keeps working
	send(t, host, api.Out{T: api.WebrtcOffer, Payload: map[string]any{
		"receiver_id": rid,
		"offer":       map[string]any{"type": "offer", "sdp": "v=0"},
	}})

	send(t, host, api.Out{T: api.GetReceivers})
	update = api.Unwrap[[]api.ReceiverInfo](recvT(t, host, api.ReceiversUpdate).Payload)
	if update == nil || len(*update) != 0 {
		t.Errorf("expected an empty membership update after the drop")
	}
}

func TestHostDisconnectTearsDownSession(t *testing.T) {
	srv := startHub(t)
	host, id := createSession(t, srv)
	_ = host.Close()

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(srv.URL + "/api/join/" + id)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %v is still joinable after host disconnect", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	srv := startHub(t)
	host, _ := createSession(t, srv)

	send(t, host, api.Out{T: "metrics_push", Payload: map[string]any{"x": 1}})
	send(t, host, api.Out{T: api.GetReceivers})
	recvT(t, host, api.ReceiversUpdate)
}

func TestBadFirstReceiverMessage(t *testing.T) {
	srv := startHub(t)
	host, id := createSession(t, srv)

	rcv := dial(t, wsAddr(srv, "/api/join/"+id))
	send(t, rcv, api.Out{T: api.GetReceivers})

	// the connection is abandoned without a receiver being registered
	_ = rcv.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := rcv.ReadMessage(); err == nil {
		t.Errorf("expected the connection to be closed")
	}

	send(t, host, api.Out{T: api.GetReceivers})
	update := api.Unwrap[[]api.ReceiverInfo](recvT(t, host, api.ReceiversUpdate).Payload)
	if update == nil || len(*update) != 0 {
		t.Errorf("a rejected join left a receiver behind")
	}
}
