package broker

import (
	"encoding/json"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/probelab/reporter/channel"
)

var codecEvent = channel.Event{
	Timestamp: 42,
	Code:      1,
	Kind:      channel.KindState,
	Payload:   "x=1",
}

func TestCSVCodec(t *testing.T) {
	body, err := (CSVCodec{}).Encode(codecEvent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := "42,state_event,x=1"
	if string(body) != want {
		t.Errorf("body = %q, want %q", string(body), want)
	}
}

func TestCSVCodec_NoTrailingNewline(t *testing.T) {
	body, err := (CSVCodec{}).Encode(codecEvent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if body[len(body)-1] == '\n' {
		t.Error("CSV body carries a trailing newline")
	}
}

func TestJSONCodec(t *testing.T) {
	body, err := (JSONCodec{}).Encode(codecEvent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var got eventRecord
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Timestamp != 42 || got.EventType != "state_event" || got.Payload != "x=1" {
		t.Errorf("record = %+v, want {42 state_event x=1}", got)
	}
}

func TestMsgpackCodec(t *testing.T) {
	body, err := (MsgpackCodec{}).Encode(codecEvent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var got eventRecord
	if err := msgpack.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Timestamp != 42 || got.EventType != "state_event" || got.Payload != "x=1" {
		t.Errorf("record = %+v, want {42 state_event x=1}", got)
	}
}

func TestNewCodec(t *testing.T) {
	tests := []struct {
		name     string
		codec    string
		wantName string
		wantErr  bool
	}{
		{name: "default", codec: "", wantName: "csv"},
		{name: "csv", codec: "csv", wantName: "csv"},
		{name: "json", codec: "json", wantName: "json"},
		{name: "msgpack", codec: "msgpack", wantName: "msgpack"},
		{name: "unknown", codec: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := NewCodec(tt.codec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCodec failed: %v", err)
			}
			if codec.Name() != tt.wantName {
				t.Errorf("Name = %q, want %q", codec.Name(), tt.wantName)
			}
		})
	}
}

func TestCodec_InvalidKindTag(t *testing.T) {
	ev := channel.Event{Timestamp: 7, Code: 99, Kind: channel.KindInvalid, Payload: "?"}

	body, err := (CSVCodec{}).Encode(ev)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(body) != "7,invalid,?" {
		t.Errorf("body = %q, want %q", string(body), "7,invalid,?")
	}
}
