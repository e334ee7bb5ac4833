package api

import (
	"bytes"
	"testing"
)

func TestEnvelopeRoundabout(t *testing.T) {
	raw := []byte(`{"type":"webrtc_offer","payload":{"receiver_id":"r1","offer":{"sdp":"v=0","type":"offer"}}}`)

	var in In
	if err := Unmarshal(raw, &in); err != nil {
		t.Fatalf("can't unmarshal envelope, %v", err)
	}
	if in.T != WebrtcOffer {
		t.Errorf("expected %v, got %v", WebrtcOffer, in.T)
	}

	sig := Unwrap[Signal](in.Payload)
	if sig == nil {
		t.Fatalf("can't unwrap signal")
	}
	if sig.ReceiverId != "r1" {
		t.Errorf("expected r1, got %v", sig.ReceiverId)
	}
	// the body should survive verbatim
	if !bytes.Contains(sig.Offer, []byte(`"sdp":"v=0"`)) {
		t.Errorf("offer body was mangled: %s", sig.Offer)
	}
}

func TestUnwrapBadPayload(t *testing.T) {
	if v := Unwrap[Join]([]byte(`42`)); v != nil {
		t.Errorf("expected nil for a non-object payload, got %v", v)
	}
}

func TestOutTags(t *testing.T) {
	r, err := Marshal(Out{T: UploadCreated, Payload: Created{Id: "ab12cd34"}})
	if err != nil {
		t.Fatalf("can't marshal packet")
	}
	want := `{"type":"upload_created","payload":{"id":"ab12cd34"}}`
	if string(r) != want {
		t.Errorf("expected %v, got %v", want, string(r))
	}
}
