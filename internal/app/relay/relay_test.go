package relay

import "testing"

func TestDecodeTranscriptEnvelope(t *testing.T) {
	in := Decode("agent-AB12", []byte(`{"type":"transcript","speaker":"assistant","text":"Hello, how can I help?"}`))
	if in.Kind != KindTranscript {
		t.Fatalf("expected transcript, got %v", in.Kind)
	}
	if in.Speaker != "assistant" {
		t.Fatalf("expected speaker assistant, got %s", in.Speaker)
	}
	if in.Text != "Hello, how can I help?" {
		t.Fatalf("unexpected text: %s", in.Text)
	}
}

func TestDecodeEnvelopeWithoutSpeakerFallsBackToSender(t *testing.T) {
	in := Decode("agent-AB12", []byte(`{"type":"transcript","text":"hi"}`))
	if in.Kind != KindTranscript {
		t.Fatalf("expected transcript, got %v", in.Kind)
	}
	if in.Speaker != "agent-AB12" {
		t.Fatalf("expected sender fallback, got %s", in.Speaker)
	}
}

func TestDecodePlainTextIsChat(t *testing.T) {
	in := Decode("agent-AB12", []byte("please book me in"))
	if in.Kind != KindChat {
		t.Fatalf("expected chat, got %v", in.Kind)
	}
	if in.Text != "please book me in" {
		t.Fatalf("unexpected text: %s", in.Text)
	}
}

func TestDecodeMalformedJSONDegradesToChat(t *testing.T) {
	raw := `{"type":"transcript","text":`
	in := Decode("agent-AB12", []byte(raw))
	if in.Kind != KindChat {
		t.Fatalf("expected chat for malformed payload, got %v", in.Kind)
	}
	if in.Text != raw {
		t.Fatalf("raw text must pass through unchanged")
	}
}

func TestDecodeUnknownEnvelopeTypeIsChat(t *testing.T) {
	raw := `{"type":"metrics","text":"cpu"}`
	in := Decode("agent-AB12", []byte(raw))
	if in.Kind != KindChat {
		t.Fatalf("expected chat for unknown envelope type, got %v", in.Kind)
	}
}

func TestEncodeChatRoundTrip(t *testing.T) {
	payload, ok := EncodeChat("  Hi there  ")
	if !ok {
		t.Fatalf("expected encode to succeed")
	}
	in := Decode("agent-AB12", payload)
	if in.Kind != KindChat || in.Text != "Hi there" {
		t.Fatalf("round trip mismatch: %+v", in)
	}
}

func TestEncodeChatRejectsBlank(t *testing.T) {
	if _, ok := EncodeChat("   \n\t"); ok {
		t.Fatalf("expected blank text to be rejected")
	}
}
