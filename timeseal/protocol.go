// TimeSeal wraps every line sent to the server in an obfuscated frame that
// carries a client timestamp, and embeds a heartbeat marker in the server's
// output stream that the client must acknowledge once per occurrence. It is
// an obfuscation layer, not encryption.
//
// Protocol Format:
//
//	Frame (Client -> Server):   <ciphered payload+timestamp+filler><0x80|offset>\n
//	Heartbeat (Server -> Client): [G]\n\r anywhere in the stream
//	Acknowledgment:             Encode("\x02" + "9") + "\n"
//	Handshake (first frame):    TIMESTAMP|<user>|<platform>|
//
// Example Session:
//
//	SRV: Starting FICS session as guest ...
//	CLI: <frame "TIMESTAMP|alice|Linux host 6.1 x86_64|">
//	SRV: ... [G]\n\r ...
//	CLI: <frame "\x029">

package timeseal

import (
	"time"
)

// Protocol constants.
const (
	// cipherPhrase is the key stream the encoder XORs frame bytes with.
	cipherPhrase = "Timestamp (FICS) v1.0 - programmed by Henrik Gram."

	// TableLen is the length of the cipher table.
	TableLen = len(cipherPhrase)

	// fillerChars is the alphabet used to pad frames to a 12-byte boundary.
	fillerChars = "1234567890abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// BlockSize is the permutation block size of an encoded frame.
	BlockSize = 12

	// Marker is the heartbeat sequence the server embeds in its output.
	Marker = "[G]\n\r"

	// HeartbeatResponse is the payload sent back once per Marker.
	HeartbeatResponse = "\x02" + "9"

	// TelnetEchoSuppress is IAC WONT ECHO, which some servers put in their banner.
	TelnetEchoSuppress = "\xff\xfc\x01"

	// DatagramEnd terminates an ICC level-2 datagram.
	DatagramEnd = "\x19)"

	// UnitEnd terminates an ICC command unit.
	UnitEnd = "\x19]"

	// HandshakePrefix starts the first frame of every TimeSeal session.
	HandshakePrefix = "TIMESTAMP|"

	// timestampStart and timestampEnd delimit the decimal timestamp in a frame.
	timestampStart = 0x18
	timestampEnd   = 0x19

	// timestampModulus keeps the frame timestamp to seven decimal digits.
	timestampModulus = 10_000_000

	// MaxBufferSize is the largest amount of unterminated data a reader keeps.
	MaxBufferSize = 64 * 1024

	// readChunkSize is the receive buffer handed to each transport read.
	readChunkSize = 4096

	// ConnectionTimeout is the timeout for establishing connections.
	ConnectionTimeout = 30 * time.Second

	// ICCHost is the host name that selects the ICC dialect before dialing.
	ICCHost = "chessclub.com"
)

var (
	cipherTable    = []byte(cipherPhrase)
	fillerAlphabet = []byte(fillerChars)
)

// Handshake returns the first line a TimeSeal client sends after connecting.
func Handshake(user, platform string) string {
	return HandshakePrefix + user + "|" + platform + "|"
}
