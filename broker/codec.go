package broker

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/probelab/reporter/channel"
)

// Codec encodes a decoded event into a message body. The CSV codec is the
// default; JSON and msgpack are available for consumers that prefer a
// structured body over line parsing.
type Codec interface {
	// Name is the codec identifier used in configuration.
	Name() string
	// ContentType is the MIME type stamped on published messages.
	ContentType() string
	// Encode produces the message body for one event.
	Encode(ev channel.Event) ([]byte, error)
}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "csv", "":
		return CSVCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (use csv, json, or msgpack)", name)
	}
}

// CSVCodec emits the event as a CSV line. The body carries no trailing
// newline; consumers frame by message boundaries.
type CSVCodec struct{}

// Name implements Codec.
func (CSVCodec) Name() string { return "csv" }

// ContentType implements Codec.
func (CSVCodec) ContentType() string { return "text/csv" }

// Encode implements Codec.
func (CSVCodec) Encode(ev channel.Event) ([]byte, error) {
	return fmt.Appendf(nil, "%d,%s,%s", ev.Timestamp, ev.Kind.Tag(), ev.Payload), nil
}

// eventRecord is the structured body shared by the JSON and msgpack codecs.
type eventRecord struct {
	Timestamp uint64 `json:"timestamp" msgpack:"timestamp"`
	EventType string `json:"event_type" msgpack:"event_type"`
	Payload   string `json:"payload" msgpack:"payload"`
}

// JSONCodec emits the event as a JSON object.
type JSONCodec struct{}

// Name implements Codec.
func (JSONCodec) Name() string { return "json" }

// ContentType implements Codec.
func (JSONCodec) ContentType() string { return "application/json" }

// Encode implements Codec.
func (JSONCodec) Encode(ev channel.Event) ([]byte, error) {
	return json.Marshal(eventRecord{
		Timestamp: ev.Timestamp,
		EventType: ev.Kind.Tag(),
		Payload:   ev.Payload,
	})
}

// MsgpackCodec emits the event as a msgpack map.
type MsgpackCodec struct{}

// Name implements Codec.
func (MsgpackCodec) Name() string { return "msgpack" }

// ContentType implements Codec.
func (MsgpackCodec) ContentType() string { return "application/msgpack" }

// Encode implements Codec.
func (MsgpackCodec) Encode(ev channel.Event) ([]byte, error) {
	return msgpack.Marshal(eventRecord{
		Timestamp: ev.Timestamp,
		EventType: ev.Kind.Tag(),
		Payload:   ev.Payload,
	})
}
