package timeseal

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

// Encoder turns outgoing lines into TimeSeal frames.
//
// Encoder owns a random source and a clock so tests can make frames
// reproducible. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewEncoder creates an Encoder drawing filler and offsets from src and
// timestamps from now. A nil src or now falls back to a time-seeded PCG
// source and time.Now.
func NewEncoder(src rand.Source, now func() time.Time) *Encoder {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1|1)
	}
	if now == nil {
		now = time.Now
	}
	return &Encoder{rnd: rand.New(src), now: now}
}

var defaultEncoder = NewEncoder(nil, nil)

// Encode encodes payload with the current timestamp using the package encoder.
func Encode(payload []byte) []byte {
	return defaultEncoder.Encode(payload)
}

// EncodeAt encodes payload with an explicit timestamp using the package encoder.
func EncodeAt(payload []byte, timestamp int64) []byte {
	return defaultEncoder.EncodeAt(payload, timestamp)
}

// Timestamp returns the frame timestamp for t: milliseconds since the epoch
// modulo 10,000,000.
func Timestamp(t time.Time) int64 {
	return t.UnixMilli() % timestampModulus
}

// Encode encodes payload stamped with the encoder's clock.
func (e *Encoder) Encode(payload []byte) []byte {
	return e.EncodeAt(payload, Timestamp(e.now()))
}

// EncodeAt builds the obfuscated frame for payload and timestamp. The result
// does not include the line terminator; the caller appends '\n'.
//
// payload must not end in '\n'. Passing one is a programming error and
// EncodeAt panics rather than silently trimming it.
func (e *Encoder) EncodeAt(payload []byte, timestamp int64) []byte {
	if len(payload) > 0 && payload[len(payload)-1] == '\n' {
		panic("timeseal: payload ends with a newline")
	}

	frame := make([]byte, 0, len(payload)+BlockSize*2+1)
	frame = append(frame, payload...)
	frame = append(frame, timestampStart)
	frame = strconv.AppendInt(frame, timestamp, 10)
	frame = append(frame, timestampEnd)

	e.mu.Lock()
	frame = appendFiller(e.rnd, frame, paddingLen(len(frame)))
	offset := e.rnd.IntN(TableLen)
	e.mu.Unlock()

	permute(frame)
	cipher(frame, offset)

	return append(frame, 0x80|byte(offset))
}

// paddingLen returns how many filler bytes bring n up to a block boundary.
// A frame already on a boundary still gets a full block.
func paddingLen(n int) int {
	return BlockSize - n%BlockSize
}

// appendFiller appends n distinct filler bytes in random order.
func appendFiller(rnd *rand.Rand, frame []byte, n int) []byte {
	for _, i := range rnd.Perm(len(fillerAlphabet))[:n] {
		frame = append(frame, fillerAlphabet[i])
	}
	return frame
}

// permute swaps positions (0,11), (2,9) and (4,7) of every 12-byte block.
// The swap is its own inverse.
func permute(buf []byte) {
	for i := 0; i+BlockSize <= len(buf); i += BlockSize {
		buf[i], buf[i+11] = buf[i+11], buf[i]
		buf[i+2], buf[i+9] = buf[i+9], buf[i+2]
		buf[i+4], buf[i+7] = buf[i+7], buf[i+4]
	}
}

// cipher sets the high bit of every byte, XORs it with the table starting at
// offset and subtracts 32, wrapping modulo 256.
func cipher(buf []byte, offset int) {
	for i := range buf {
		buf[i] = ((buf[i] | 0x80) ^ cipherTable[(i+offset)%TableLen]) - 32
	}
}
