// Package timeseal provides a Go client for Internet Chess Servers that speak
// the TimeSeal protocol.
//
// # Overview
//
// A Conn dials the server, detects the server family from its banner, and
// from then on runs one receive goroutine that strips heartbeat markers from
// the incoming stream, answers each of them, and buffers the clean bytes for
// callers. Reads block the calling goroutine until enough data has arrived
// or the connection is canceled.
//
//	conn := timeseal.NewConn(timeseal.Options{
//	    User:     "alice",
//	    Platform: "Linux host 6.1 x86_64",
//	    Logger:   logger,
//	})
//	if err := conn.Start(ctx, "freechess.org", 5000, true); err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	for {
//	    line, err := conn.ReadLine(ctx)
//	    if err != nil {
//	        break
//	    }
//	    fmt.Println(line)
//	}
//
// # Codec
//
// Encode and Decode are usable on their own. Decode threads an explicit Carry
// value between calls so a marker split across two chunks is still found:
//
//	var carry timeseal.Carry
//	clean, n, carry := timeseal.Decode(chunk1, carry)
//	clean2, m, carry := timeseal.Decode(chunk2, carry)
//
// # Dialects
//
// FICS (Plain), FatICS, USCN and ICC differ in banner handling, whether
// TimeSeal is used at all, and which record separators end a read. The
// differences live in a single policy table indexed by Dialect.
//
// # Thread Safety
//
// Conn is safe for concurrent use. Reads from several goroutines are
// serialized by the underlying StreamReader; writes, including heartbeat
// acknowledgments, never interleave on the wire.
package timeseal
