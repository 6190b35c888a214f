package channel

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDecode_Roundtrip(t *testing.T) {
	conf := Canonical()

	tests := []struct {
		name        string
		ts          uint64
		code        uint32
		payload     string
		wantKind    EventKind
		wantPayload string
	}{
		{name: "timed", ts: 10, code: 0, payload: "a", wantKind: KindTimed, wantPayload: "a"},
		{name: "state", ts: 20, code: 1, payload: "x=1", wantKind: KindState, wantPayload: "x=1"},
		{name: "process", ts: 30, code: 2, payload: "step", wantKind: KindProcess, wantPayload: "step"},
		{name: "component", ts: 40, code: 3, payload: "c1", wantKind: KindComponent, wantPayload: "c1"},
		{name: "log init", ts: 50, code: 4, payload: "mod", wantKind: KindLogInit, wantPayload: "mod"},
		{name: "self logged", ts: 60, code: 5, payload: "mod,100,hi", wantKind: KindSelfLogged, wantPayload: "mod,100,hi"},
		{name: "trailing whitespace stripped", ts: 70, code: 0, payload: "a  \t", wantKind: KindTimed, wantPayload: "a"},
		{name: "max timestamp", ts: ^uint64(0), code: 0, payload: "", wantKind: KindTimed, wantPayload: ""},
		{name: "full payload", ts: 80, code: 1, payload: strings.Repeat("p", conf.PayloadMax), wantKind: KindState, wantPayload: strings.Repeat("p", conf.PayloadMax)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := Encode(tt.ts, tt.code, []byte(tt.payload), conf)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			ev, err := Decode(pkg, conf)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if ev.Timestamp != tt.ts {
				t.Errorf("Timestamp = %d, want %d", ev.Timestamp, tt.ts)
			}
			if ev.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", ev.Kind, tt.wantKind)
			}
			if ev.Payload != tt.wantPayload {
				t.Errorf("Payload = %q, want %q", ev.Payload, tt.wantPayload)
			}
		})
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	conf := Canonical()

	for _, code := range []uint32{6, 42, 99, ^uint32(0)} {
		pkg, err := Encode(7, code, []byte("?"), conf)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		ev, err := Decode(pkg, conf)
		if err != nil {
			t.Fatalf("code %d: Decode failed: %v", code, err)
		}
		if ev.Kind != KindInvalid {
			t.Errorf("code %d: Kind = %v, want KindInvalid", code, ev.Kind)
		}
		if ev.Code != code {
			t.Errorf("code %d: Code = %d, want preserved", code, ev.Code)
		}
		if ev.Payload != "?" {
			t.Errorf("code %d: Payload = %q, want %q", code, ev.Payload, "?")
		}
	}
}

func TestDecode_InvalidUTF8(t *testing.T) {
	conf := Canonical()

	pkg, err := Encode(1, 0, []byte{0xff, 0xfe, 'o', 'k'}, conf)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	ev, err := Decode(pkg, conf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !utf8.ValidString(ev.Payload) {
		t.Errorf("Payload %q is not valid UTF-8", ev.Payload)
	}
	if !strings.Contains(ev.Payload, "�") {
		t.Errorf("Payload %q missing replacement character", ev.Payload)
	}
	if !strings.HasSuffix(ev.Payload, "ok") {
		t.Errorf("Payload %q lost valid bytes", ev.Payload)
	}
}

func TestDecode_WrongSize(t *testing.T) {
	conf := Canonical()

	for _, size := range []int{0, 1, 1023, 1025, 2048} {
		_, err := Decode(make([]byte, size), conf)
		if !IsFrameError(err) {
			t.Errorf("size %d: expected FrameError, got %v", size, err)
		}
		var frameErr *FrameError
		if errors.As(err, &frameErr) && frameErr.Kind != FrameErrorSize {
			t.Errorf("size %d: Kind = %d, want FrameErrorSize", size, frameErr.Kind)
		}
	}
}

func TestEncode_PayloadTooLong(t *testing.T) {
	conf := Canonical()

	if _, err := Encode(1, 0, make([]byte, conf.PayloadMax+1), conf); err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestEventKind_Tag(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{KindTimed, "timed_event"},
		{KindState, "state_event"},
		{KindProcess, "process_event"},
		{KindComponent, "component_event"},
		{KindLogInit, "log_init"},
		{KindSelfLogged, "self_logged_component_event"},
		{KindInvalid, "invalid"},
		{EventKind(99), "invalid"},
	}

	for _, tt := range tests {
		if got := tt.kind.Tag(); got != tt.want {
			t.Errorf("Tag(%v) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestConf_Capacity(t *testing.T) {
	if got := Canonical().Capacity(); got != 64 {
		t.Errorf("canonical Capacity = %d, want 64", got)
	}
	if got := Legacy().Capacity(); got != 63 {
		t.Errorf("legacy Capacity = %d, want 63", got)
	}
}
