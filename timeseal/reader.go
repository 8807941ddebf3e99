package timeseal

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// StreamReader buffers bytes pushed by a producer goroutine and hands them
// out to readers that block until their terminator has arrived.
//
// A blocked read only parks its own goroutine. It returns when enough data
// is buffered, when the reader is closed, or when ctx is done.
type StreamReader struct {
	mu    sync.Mutex
	buf   []byte
	err   error
	wake  chan struct{}
	limit int
}

// NewStreamReader creates a reader that gives up on an unterminated record
// once limit bytes are buffered. A limit <= 0 selects MaxBufferSize.
func NewStreamReader(limit int) *StreamReader {
	if limit <= 0 {
		limit = MaxBufferSize
	}
	return &StreamReader{
		wake:  make(chan struct{}),
		limit: limit,
	}
}

// Feed appends p to the buffer and wakes any waiting reader.
func (r *StreamReader) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.buf = append(r.buf, p...)
	r.broadcast()
}

// CloseWithError marks the end of the stream. Data already buffered can
// still be read when err is io.EOF; any other error is returned by every
// read that cannot be satisfied from the buffer. Only the first call has an
// effect.
func (r *StreamReader) CloseWithError(err error) {
	if err == nil {
		err = io.EOF
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.err = err
	r.broadcast()
}

// Buffered returns the number of bytes waiting to be read.
func (r *StreamReader) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// broadcast wakes every waiter. Callers hold r.mu.
func (r *StreamReader) broadcast() {
	close(r.wake)
	r.wake = make(chan struct{})
}

// ReadLine returns the next record ending in '\n', terminator included. At
// the end of the stream the unterminated remainder is returned, followed by
// the close error on the next call.
func (r *StreamReader) ReadLine(ctx context.Context) ([]byte, error) {
	line, err := r.ReadUntil(ctx, []byte{'\n'})
	if err == io.ErrUnexpectedEOF && len(line) > 0 {
		return line, nil
	}
	return line, err
}

// ReadUntil returns the bytes up to and including the first occurrence of
// sep. If the stream ends first, the partial data is returned together with
// io.ErrUnexpectedEOF.
func (r *StreamReader) ReadUntil(ctx context.Context, sep []byte) ([]byte, error) {
	for {
		r.mu.Lock()
		if i := bytes.Index(r.buf, sep); i >= 0 {
			out := r.take(i + len(sep))
			r.mu.Unlock()
			return out, nil
		}
		if r.err != nil {
			err := r.err
			if err != io.EOF {
				r.mu.Unlock()
				return nil, err
			}
			out := r.take(len(r.buf))
			r.mu.Unlock()
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, io.ErrUnexpectedEOF
		}
		if len(r.buf) > r.limit {
			r.buf = nil
			r.mu.Unlock()
			return nil, ErrLineTooLong
		}
		wake := r.wake
		r.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReadUntilAny waits until one of seps is present in the buffer and returns
// its index. Candidates are checked in argument order each time data
// arrives, so an earlier candidate wins even if a later one occurs sooner in
// the stream. Bytes before the match are discarded; the match itself is left
// for the next read. Like ReadUntil, it gives up with ErrLineTooLong once more
// than the limit is buffered without a match.
func (r *StreamReader) ReadUntilAny(ctx context.Context, seps ...[]byte) (int, error) {
	for {
		r.mu.Lock()
		for i, sep := range seps {
			if start := bytes.Index(r.buf, sep); start >= 0 {
				r.buf = r.buf[start:]
				r.mu.Unlock()
				return i, nil
			}
		}
		if r.err != nil {
			err := r.err
			r.mu.Unlock()
			return -1, err
		}
		if len(r.buf) > r.limit {
			r.buf = nil
			r.mu.Unlock()
			return -1, ErrLineTooLong
		}
		wake := r.wake
		r.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
}

// take removes and returns the first n buffered bytes. Callers hold r.mu.
func (r *StreamReader) take(n int) []byte {
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return out
}
