package stack

import (
	"bytes"
	"testing"
)

func TestCapture_ExcludesOwnPackage(t *testing.T) {
	SetOwnPackagePrefixes("fieldwatch-agent/pkg/stack")
	defer SetOwnPackagePrefixes()

	frames := capturingWrapper()
	for _, f := range frames {
		if f.Class == "fieldwatch-agent/pkg/stack" {
			t.Fatalf("expected no frame from the agent's own package, got %+v", f)
		}
	}
	if len(frames) == 0 {
		t.Fatalf("expected at least one caller frame")
	}
}

func capturingWrapper() Frames {
	return Capture(0)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	frames := Frames{
		{Class: "example.com/pkg", Method: "Do", Line: 42},
		{Class: "example.com/pkg2", Method: "DoMore", Line: 7},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, frames); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(frames) {
		t.Fatalf("expected %d frames, got %d", len(frames), len(got))
	}
	for i := range frames {
		if got[i] != frames[i] {
			t.Fatalf("frame %d: got %+v want %+v", i, got[i], frames[i])
		}
	}
}

func TestEncodeDecode_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no frames, got %v", got)
	}
}

func TestBytes_MatchesEncode(t *testing.T) {
	frames := Frames{{Class: "a", Method: "b", Line: 1}}
	var buf bytes.Buffer
	_ = Encode(&buf, frames)
	if !bytes.Equal(Bytes(frames), buf.Bytes()) {
		t.Fatalf("Bytes output does not match Encode output")
	}
}
