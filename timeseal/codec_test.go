package timeseal

import (
	"bytes"
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsealed is a frame taken apart again.
type unsealed struct {
	payload   []byte
	timestamp int64
	filler    []byte
	offset    int
}

// unseal inverts EncodeAt for frames whose payload is 7-bit ASCII.
func unseal(t *testing.T, frame []byte) unsealed {
	t.Helper()
	require.NotEmpty(t, frame)

	trailer := frame[len(frame)-1]
	require.NotZero(t, trailer&0x80, "trailer %#x lacks the high bit", trailer)
	offset := int(trailer &^ 0x80)
	require.Less(t, offset, TableLen)

	body := append([]byte(nil), frame[:len(frame)-1]...)
	require.Zero(t, len(body)%BlockSize, "body length %d is not a multiple of %d", len(body), BlockSize)

	for i := range body {
		body[i] = ((body[i] + 32) ^ cipherTable[(i+offset)%TableLen]) &^ 0x80
	}
	permute(body)

	start := bytes.IndexByte(body, timestampStart)
	require.GreaterOrEqual(t, start, 0, "no timestamp start in %q", body)
	end := bytes.IndexByte(body[start:], timestampEnd)
	require.Greater(t, end, 0, "no timestamp end in %q", body)
	end += start

	ts, err := strconv.ParseInt(string(body[start+1:end]), 10, 64)
	require.NoError(t, err)

	return unsealed{
		payload:   body[:start],
		timestamp: ts,
		filler:    body[end+1:],
		offset:    offset,
	}
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestEncodeRoundTrip(t *testing.T) {
	enc := NewEncoder(rand.NewPCG(1, 2), fixedClock(1_700_000_123_456))

	payloads := []string{
		"",
		"a",
		"finger alice",
		HeartbeatResponse,
		Handshake("alice", "Linux host 6.1 x86_64"),
		"tell 1 the quick brown fox jumps over the lazy dog",
	}

	for _, p := range payloads {
		t.Run(strconv.Quote(p), func(t *testing.T) {
			frame := enc.Encode([]byte(p))
			got := unseal(t, frame)
			assert.Equal(t, p, string(got.payload))
			assert.Equal(t, int64(123_456), got.timestamp)
		})
	}
}

func TestEncodeFrameShape(t *testing.T) {
	enc := NewEncoder(rand.NewPCG(7, 7), fixedClock(0))

	for n := 0; n < 40; n++ {
		payload := bytes.Repeat([]byte{'x'}, n)
		frame := enc.EncodeAt(payload, 42)

		framed := n + len("\x1842\x19")
		padding := BlockSize - framed%BlockSize
		require.Equal(t, framed+padding+1, len(frame), "payload length %d", n)
		require.GreaterOrEqual(t, padding, 1)
		require.LessOrEqual(t, padding, BlockSize)

		for _, b := range frame[:len(frame)-1] {
			require.True(t, b >= 0x60 && b <= 0xDF, "frame byte %#x out of range", b)
		}
		require.NotContains(t, string(frame), "\n")

		got := unseal(t, frame)
		require.Len(t, got.filler, padding)
		seen := map[byte]bool{}
		for _, f := range got.filler {
			require.Contains(t, fillerChars, string(f))
			require.False(t, seen[f], "filler byte %q repeated", f)
			seen[f] = true
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := NewEncoder(rand.NewPCG(3, 4), fixedClock(99))
	b := NewEncoder(rand.NewPCG(3, 4), fixedClock(99))

	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Encode([]byte("seek 5 0")), b.Encode([]byte("seek 5 0")))
	}
}

func TestEncodeOffsetsVary(t *testing.T) {
	enc := NewEncoder(rand.NewPCG(11, 13), fixedClock(0))

	offsets := map[int]bool{}
	for i := 0; i < 200; i++ {
		frame := enc.EncodeAt([]byte("hi"), 1)
		offsets[int(frame[len(frame)-1]&^0x80)] = true
	}
	assert.Greater(t, len(offsets), 10)
	for off := range offsets {
		assert.Less(t, off, TableLen)
	}
}

func TestEncodePanicsOnNewline(t *testing.T) {
	assert.Panics(t, func() { EncodeAt([]byte("hello\n"), 1) })
	assert.NotPanics(t, func() { EncodeAt([]byte("hel\nlo"), 1) })
}

func TestPackageEncode(t *testing.T) {
	got := unseal(t, Encode([]byte("who")))
	assert.Equal(t, "who", string(got.payload))
	assert.Less(t, got.timestamp, int64(timestampModulus))
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		ms       int64
		expected int64
	}{
		{0, 0},
		{9_999_999, 9_999_999},
		{10_000_000, 0},
		{12_345_678_901, 5_678_901},
	}

	for _, tt := range tests {
		if got := Timestamp(time.UnixMilli(tt.ms)); got != tt.expected {
			t.Errorf("Timestamp(%d) = %d, want %d", tt.ms, got, tt.expected)
		}
	}
}

func TestPermuteIsInvolution(t *testing.T) {
	buf := []byte("0123456789ABabcdefghijklXY")
	orig := append([]byte(nil), buf...)

	permute(buf)
	assert.Equal(t, "B193756482A0", string(buf[:12]))
	assert.Equal(t, "XY", string(buf[24:]), "trailing partial block untouched")

	permute(buf)
	assert.Equal(t, orig, buf)
}
