package timeseal

// Carry is the decoder state that crosses chunk boundaries: how many bytes of
// the marker have matched so far and the bytes held back while the match is
// still tentative. The zero value is the initial state.
type Carry struct {
	State   int
	Partial []byte
}

// Decode removes every heartbeat Marker from chunk and counts them.
// See DecodeMarker.
func Decode(chunk []byte, carry Carry) (clean []byte, markers int, next Carry) {
	return DecodeMarker(chunk, carry, markerBytes)
}

var markerBytes = []byte(Marker)

// DecodeMarker passes every byte of chunk through to clean except complete
// occurrences of pattern, which are dropped and counted. A match split
// across calls is finished on the next call as long as the returned carry is
// handed back in.
//
// On a mismatch after a partial match the held-back bytes are flushed to the
// output and the same input byte is examined again from state zero, so it
// may start a new match. No byte is ever dropped or duplicated.
func DecodeMarker(chunk []byte, carry Carry, pattern []byte) (clean []byte, markers int, next Carry) {
	state := carry.State
	partial := append([]byte(nil), carry.Partial...)
	clean = make([]byte, 0, len(chunk)+len(partial))

	for i := 0; i < len(chunk); {
		b := chunk[i]
		switch {
		case b == pattern[state]:
			state++
			if state == len(pattern) {
				markers++
				partial = partial[:0]
				state = 0
			} else {
				partial = append(partial, b)
			}
			i++
		case state == 0:
			clean = append(clean, b)
			i++
		default:
			// Tentative match failed: flush it and retry b without advancing.
			clean = append(clean, partial...)
			partial = partial[:0]
			state = 0
		}
	}

	if len(partial) == 0 {
		partial = nil
	}
	return clean, markers, Carry{State: state, Partial: partial}
}
