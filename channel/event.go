package channel

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// EventKind is the closed classification of SUT event records.
type EventKind int

const (
	// KindTimed is a clock tick emitted by the SUT.
	KindTimed EventKind = iota
	// KindState is a state-variable change.
	KindState
	// KindProcess is a high-level process step.
	KindProcess
	// KindComponent is component activity.
	KindComponent
	// KindLogInit opens a per-component sink (file variant) or marks the
	// end of the report (broker variant).
	KindLogInit
	// KindSelfLogged carries "<component>,<rest>" payloads routed to the
	// component's own sink.
	KindSelfLogged
	// KindInvalid tags records with an unknown event type code. The
	// record is preserved verbatim; this is not an error.
	KindInvalid
)

// Event type codes on the wire.
const (
	codeTimed      = 0
	codeState      = 1
	codeProcess    = 2
	codeComponent  = 3
	codeLogInit    = 4
	codeSelfLogged = 5
)

// classify maps a wire code to an EventKind. Unknown codes are invalid,
// never an error.
func classify(code uint32) EventKind {
	switch code {
	case codeTimed:
		return KindTimed
	case codeState:
		return KindState
	case codeProcess:
		return KindProcess
	case codeComponent:
		return KindComponent
	case codeLogInit:
		return KindLogInit
	case codeSelfLogged:
		return KindSelfLogged
	default:
		return KindInvalid
	}
}

// Tag returns the kind name used in emitted CSV lines and message bodies.
func (k EventKind) Tag() string {
	switch k {
	case KindTimed:
		return "timed_event"
	case KindState:
		return "state_event"
	case KindProcess:
		return "process_event"
	case KindComponent:
		return "component_event"
	case KindLogInit:
		return "log_init"
	case KindSelfLogged:
		return "self_logged_component_event"
	default:
		return "invalid"
	}
}

// Event is one decoded SUT record.
type Event struct {
	// Timestamp is the SUT clock value carried by the packet.
	Timestamp uint64
	// Code is the raw event type code from the wire.
	Code uint32
	// Kind classifies Code per the closed enumeration.
	Kind EventKind
	// Payload is the usable payload region, right-stripped.
	Payload string
}

// payloadCutset are the padding bytes stripped off the payload tail.
const payloadCutset = "\x00\t\n\v\f\r "

// Decode unpacks a single packet into an Event.
//
// The packet must be exactly conf.MaxPkgSize bytes. Invalid UTF-8 in the
// payload is replaced with U+FFFD; an unknown event type code yields
// KindInvalid. Neither aborts the pipeline.
func Decode(pkg []byte, conf Conf) (Event, error) {
	if len(pkg) != conf.MaxPkgSize {
		return Event{}, &FrameError{
			Kind: FrameErrorSize,
			Msg:  fmt.Sprintf("packet size %d, want %d", len(pkg), conf.MaxPkgSize),
		}
	}

	code := binary.LittleEndian.Uint32(pkg[8:headerSize])
	raw := pkg[headerSize : headerSize+conf.PayloadMax]
	payload := strings.TrimRight(strings.ToValidUTF8(string(raw), "�"), payloadCutset)

	return Event{
		Timestamp: binary.LittleEndian.Uint64(pkg[0:8]),
		Code:      code,
		Kind:      classify(code),
		Payload:   payload,
	}, nil
}

// Encode packs a timestamp, event type code, and payload into a packet of
// conf.MaxPkgSize bytes. This is the counterpart to Decode, used by SUT
// simulators and tests. Payloads longer than conf.PayloadMax are rejected.
func Encode(ts uint64, code uint32, payload []byte, conf Conf) ([]byte, error) {
	if len(payload) > conf.PayloadMax {
		return nil, fmt.Errorf("payload size %d exceeds maximum %d", len(payload), conf.PayloadMax)
	}
	pkg := make([]byte, conf.MaxPkgSize)
	binary.LittleEndian.PutUint64(pkg[0:8], ts)
	binary.LittleEndian.PutUint32(pkg[8:headerSize], code)
	copy(pkg[headerSize:], payload)
	return pkg, nil
}
