// Package channel implements the SUT communication channel: the fixed-size
// binary packet layout, the batch framer that slices pipe reads into whole
// packets, and the packet-to-event decoder.
package channel

// BufferSize is the per-read byte bound (the OS default pipe buffer).
const BufferSize = 65536

// Conf describes how the SUT packs event records into the channel.
// A Conf is immutable after construction; the pipeline selects one layout
// at start-time and never guesses.
type Conf struct {
	// MaxPkgSize is the total packet size in bytes, header included.
	MaxPkgSize int
	// PayloadRegion is the size of the payload region following the
	// 12-byte header. The bytes above PayloadMax are reserved.
	PayloadRegion int
	// PayloadMax is the number of payload bytes carrying data.
	PayloadMax int
}

// headerSize is the fixed packet header: u64 timestamp + u32 event type.
const headerSize = 12

// Canonical returns the current packet layout: 1024-byte packets with a
// 1012-byte payload region of which 1010 bytes carry data.
func Canonical() Conf {
	return Conf{MaxPkgSize: 1024, PayloadRegion: 1012, PayloadMax: 1010}
}

// Legacy returns the superseded 1040-byte layout kept for old SUT builds.
// It must be selected explicitly via configuration.
func Legacy() Conf {
	return Conf{MaxPkgSize: 1040, PayloadRegion: 1028, PayloadMax: 1020}
}

// Capacity is the number of whole packets per read batch.
func (c Conf) Capacity() int {
	return BufferSize / c.MaxPkgSize
}

// BatchSize is how many bytes a single pipe read requests.
func (c Conf) BatchSize() int {
	return c.Capacity() * c.MaxPkgSize
}
