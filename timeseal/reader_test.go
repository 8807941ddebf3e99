package timeseal

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamReaderReadLine(t *testing.T) {
	r := NewStreamReader(0)
	r.Feed([]byte("one\ntwo\nthr"))

	ctx := context.Background()
	line, err := r.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(line))

	line, err = r.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(line))
	assert.Equal(t, 3, r.Buffered())
}

func TestStreamReaderBlocksUntilFed(t *testing.T) {
	r := NewStreamReader(0)

	done := make(chan string, 1)
	go func() {
		line, err := r.ReadLine(context.Background())
		if err != nil {
			done <- "error: " + err.Error()
			return
		}
		done <- string(line)
	}()

	select {
	case got := <-done:
		t.Fatalf("ReadLine returned %q before any data", got)
	case <-time.After(50 * time.Millisecond):
	}

	r.Feed([]byte("fics"))
	r.Feed([]byte("% \n"))

	select {
	case got := <-done:
		assert.Equal(t, "fics% \n", got)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine did not return after the terminator arrived")
	}
}

func TestStreamReaderContextCancel(t *testing.T) {
	r := NewStreamReader(0)
	r.Feed([]byte("partial"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.ReadLine(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, len("partial"), r.Buffered(), "buffered data survives a canceled read")
}

func TestStreamReaderEOF(t *testing.T) {
	r := NewStreamReader(0)
	r.Feed([]byte("last\nno newline"))
	r.CloseWithError(nil)

	ctx := context.Background()
	line, err := r.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "last\n", string(line))

	line, err = r.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "no newline", string(line))

	_, err = r.ReadLine(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestStreamReaderReadUntilEOF(t *testing.T) {
	r := NewStreamReader(0)
	r.Feed([]byte("login"))
	r.CloseWithError(io.EOF)

	data, err := r.ReadUntil(context.Background(), []byte(": "))
	assert.Equal(t, io.ErrUnexpectedEOF, err)
	assert.Equal(t, "login", string(data))
}

func TestStreamReaderCloseError(t *testing.T) {
	boom := errors.New("boom")
	r := NewStreamReader(0)
	r.Feed([]byte("ready\nleft"))
	r.CloseWithError(boom)
	r.CloseWithError(io.EOF)

	ctx := context.Background()
	line, err := r.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready\n", string(line))

	_, err = r.ReadLine(ctx)
	assert.ErrorIs(t, err, boom)

	r.Feed([]byte("ignored\n"))
	assert.Equal(t, len("left"), r.Buffered())
}

func TestStreamReaderLineTooLong(t *testing.T) {
	r := NewStreamReader(16)
	r.Feed([]byte(strings.Repeat("x", 17)))

	_, err := r.ReadLine(context.Background())
	assert.ErrorIs(t, err, ErrLineTooLong)
	assert.Zero(t, r.Buffered())

	r.Feed([]byte("ok\n"))
	line, err := r.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(line))
}

func TestStreamReaderReadUntilAny(t *testing.T) {
	r := NewStreamReader(0)
	r.Feed([]byte("banner text\nlogin: "))

	ctx := context.Background()
	i, err := r.ReadUntilAny(ctx, []byte("password:"), []byte("login:"))
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	// The match itself is left in the buffer.
	data, err := r.ReadUntil(ctx, []byte(": "))
	require.NoError(t, err)
	assert.Equal(t, "login: ", string(data))
}

func TestStreamReaderReadUntilAnyPriority(t *testing.T) {
	r := NewStreamReader(0)
	r.Feed([]byte("fics% login:"))

	i, err := r.ReadUntilAny(context.Background(), []byte("login:"), []byte("fics%"))
	require.NoError(t, err)
	assert.Equal(t, 0, i, "earlier candidate wins regardless of stream position")
	assert.Equal(t, len("login:"), r.Buffered())
}

func TestStreamReaderReadUntilAnyWaits(t *testing.T) {
	r := NewStreamReader(0)

	result := make(chan int, 1)
	go func() {
		i, _ := r.ReadUntilAny(context.Background(), []byte("a"), []byte("b"))
		result <- i
	}()

	r.Feed([]byte("xxb"))

	select {
	case i := <-result:
		assert.Equal(t, 1, i)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadUntilAny did not return")
	}
}

func TestStreamReaderReadUntilAnyClosed(t *testing.T) {
	r := NewStreamReader(0)
	r.CloseWithError(ErrCanceled)

	i, err := r.ReadUntilAny(context.Background(), []byte("x"))
	assert.Equal(t, -1, i)
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestStreamReaderReadUntilAnyTooLong(t *testing.T) {
	r := NewStreamReader(16)
	r.Feed([]byte(strings.Repeat("x", 17)))

	i, err := r.ReadUntilAny(context.Background(), []byte("login:"), []byte("password:"))
	assert.Equal(t, -1, i)
	assert.ErrorIs(t, err, ErrLineTooLong)
	assert.Zero(t, r.Buffered(), "the oversized buffer is dropped")

	r.Feed([]byte("login:"))
	i, err = r.ReadUntilAny(context.Background(), []byte("login:"))
	require.NoError(t, err)
	assert.Equal(t, 0, i)
}
