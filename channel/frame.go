package channel

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// FrameErrorKind classifies framing errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated packet at end of stream.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorSize indicates a buffer whose length does not match the
	// configured packet size.
	FrameErrorSize
	// FrameErrorRead indicates a pipe read failure.
	FrameErrorRead
)

// FrameError represents a framing or decoding failure on the channel.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError returns true if the error is a channel framing error.
func IsFrameError(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr)
}

// Framer slices a byte stream into whole packets of Conf.MaxPkgSize bytes.
//
// Pipe reads may return any byte count; the framer buffers a trailing
// remainder across reads so that callers only ever see complete packets.
// A remainder left over when the stream ends is a fatal FrameError.
type Framer struct {
	reader io.Reader
	conf   Conf
	rem    []byte
	eof    bool
}

// NewFramer creates a framer reading from r with the given packet layout.
func NewFramer(r io.Reader, conf Conf) *Framer {
	return &Framer{reader: r, conf: conf}
}

// ReadBatch issues one bounded read against the stream and returns the
// whole packets it yields, each exactly conf.MaxPkgSize bytes.
//
// Returns:
//   - packets, nil: zero or more complete packets (zero when the read
//     produced only a partial packet, buffered for the next call)
//   - nil, io.EOF: stream ended cleanly with no pending remainder
//   - nil, *FrameError with Kind=FrameErrorPartial: stream ended with a
//     truncated packet (fatal)
func (f *Framer) ReadBatch() ([][]byte, error) {
	if f.eof {
		return f.drain()
	}

	buf := make([]byte, f.conf.BatchSize())
	n, err := f.reader.Read(buf)
	if n > 0 {
		f.rem = append(f.rem, buf[:n]...)
	}
	if err != nil {
		// A pipe closed from under the reader during shutdown is an
		// end of stream, not a failure.
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			f.eof = true
		} else {
			return nil, &FrameError{
				Kind: FrameErrorRead,
				Msg:  "channel read failed",
				Err:  err,
			}
		}
	}

	pkgs := f.slice()
	if f.eof && len(pkgs) == 0 {
		return f.drain()
	}
	return pkgs, nil
}

// slice cuts whole packets off the front of the remainder buffer.
func (f *Framer) slice() [][]byte {
	count := len(f.rem) / f.conf.MaxPkgSize
	if count == 0 {
		return nil
	}
	pkgs := make([][]byte, 0, count)
	for i := range count {
		pkg := make([]byte, f.conf.MaxPkgSize)
		copy(pkg, f.rem[i*f.conf.MaxPkgSize:])
		pkgs = append(pkgs, pkg)
	}
	f.rem = append(f.rem[:0], f.rem[count*f.conf.MaxPkgSize:]...)
	return pkgs
}

// drain reports end of stream, failing if a truncated packet remains.
func (f *Framer) drain() ([][]byte, error) {
	if len(f.rem) > 0 {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  fmt.Sprintf("stream ended with %d-byte partial packet", len(f.rem)),
		}
	}
	return nil, io.EOF
}
