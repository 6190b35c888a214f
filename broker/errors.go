package broker

import (
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrorKind classifies broker failures mapped from AMQP conditions.
type ErrorKind int

const (
	// ErrKindProtocol indicates the server speaks an incompatible version.
	ErrKindProtocol ErrorKind = iota
	// ErrKindAuth indicates rejected credentials.
	ErrKindAuth
	// ErrKindAccess indicates the user lacks vhost or resource permission.
	ErrKindAccess
	// ErrKindConnect indicates a TCP/TLS failure or timeout.
	ErrKindConnect
	// ErrKindChannelClosed indicates the server closed the channel.
	ErrKindChannelClosed
	// ErrKindConnectionClosed indicates the server closed the connection.
	ErrKindConnectionClosed
	// ErrKindBadArgument indicates a misconfigured call.
	ErrKindBadArgument
)

// String returns the kind name used in log entries.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindProtocol:
		return "protocol_incompatible"
	case ErrKindAuth:
		return "auth_failed"
	case ErrKindAccess:
		return "access_denied"
	case ErrKindConnect:
		return "connect_failed"
	case ErrKindChannelClosed:
		return "channel_closed"
	case ErrKindConnectionClosed:
		return "connection_closed"
	case ErrKindBadArgument:
		return "bad_argument"
	default:
		return "unknown"
	}
}

// BrokerError is the single error surfaced by this package. The specific
// AMQP condition is preserved in Kind and logged at the failure site.
type BrokerError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// IsBrokerError returns true if the error is a broker failure.
func IsBrokerError(err error) bool {
	var brokerErr *BrokerError
	return errors.As(err, &brokerErr)
}

// errorPattern pairs message substrings with an error kind. Entries are
// checked in order; the first match wins.
type errorPattern struct {
	patterns []string
	kind     ErrorKind
}

var classifierTable = []errorPattern{
	{[]string{"username or password", "credentials", "SASL", "ACCESS_REFUSED - Login"}, ErrKindAuth},
	{[]string{"no access to this vhost", "access refused", "ACCESS_REFUSED", "NOT_ALLOWED"}, ErrKindAccess},
	{[]string{"incompatible", "unexpected protocol", "AMQP 0-9-1"}, ErrKindProtocol},
	{[]string{"connection refused", "no route to host", "network unreachable",
		"dial tcp", "i/o timeout", "deadline exceeded", "handshake"}, ErrKindConnect},
	{[]string{"channel"}, ErrKindChannelClosed},
	{[]string{"connection", "EOF", "broken pipe", "use of closed network"}, ErrKindConnectionClosed},
}

// Classify determines the error kind for an AMQP failure. Typed errors are
// checked first, then the pattern table.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, amqp.ErrSASL), errors.Is(err, amqp.ErrCredentials):
		return ErrKindAuth
	case errors.Is(err, amqp.ErrVhost):
		return ErrKindAccess
	case errors.Is(err, amqp.ErrClosed):
		return ErrKindConnectionClosed
	case errors.Is(err, amqp.ErrSyntax), errors.Is(err, amqp.ErrFrame), errors.Is(err, amqp.ErrUnexpectedFrame):
		return ErrKindProtocol
	case errors.Is(err, amqp.ErrFieldType), errors.Is(err, amqp.ErrCommandInvalid):
		return ErrKindBadArgument
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		switch amqpErr.Code {
		case amqp.AccessRefused, amqp.NotAllowed:
			return ErrKindAccess
		case amqp.ChannelError, amqp.PreconditionFailed, amqp.ResourceLocked:
			return ErrKindChannelClosed
		case amqp.ConnectionForced, amqp.ResourceError, amqp.InternalError:
			return ErrKindConnectionClosed
		case amqp.FrameError, amqp.SyntaxError, amqp.UnexpectedFrame, amqp.NotImplemented:
			return ErrKindProtocol
		case amqp.CommandInvalid, amqp.InvalidPath, amqp.NotFound:
			return ErrKindBadArgument
		}
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrKindConnect
	}

	errStr := strings.ToLower(err.Error())
	for _, entry := range classifierTable {
		for _, sub := range entry.patterns {
			if strings.Contains(errStr, strings.ToLower(sub)) {
				return entry.kind
			}
		}
	}

	return ErrKindConnect
}

// wrap classifies err and wraps it as a BrokerError for operation op.
// Returns nil if err is nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BrokerError{Kind: Classify(err), Op: op, Err: err}
}

// retryable reports whether a connect failure is worth another attempt.
// Credential, permission, and protocol failures will not heal on retry.
func retryable(kind ErrorKind) bool {
	switch kind {
	case ErrKindAuth, ErrKindAccess, ErrKindProtocol, ErrKindBadArgument:
		return false
	default:
		return true
	}
}
