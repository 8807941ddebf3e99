package timeseal

import (
	"bytes"
	"strings"
)

// Dialect identifies the server family on the other end of a connection.
type Dialect int

const (
	// DialectPlain is FICS and anything not otherwise recognized.
	DialectPlain Dialect = iota
	// DialectFatICS is the FatICS server.
	DialectFatICS
	// DialectUSCN is the US Chess Network server.
	DialectUSCN
	// DialectICC is the Internet Chess Club, which does not use TimeSeal.
	DialectICC
)

// dialectPolicy is everything that varies between server families.
type dialectPolicy struct {
	name string

	// fingerprint identifies the family in the first banner chunk.
	fingerprint string

	// stripEcho removes TelnetEchoSuppress from the banner chunk.
	stripEcho bool

	// echoFingerprint, when set, strips TelnetEchoSuppress only if the
	// banner also contains it.
	echoFingerprint string

	// timeseal is false when the family never speaks TimeSeal.
	timeseal bool

	// marker is the heartbeat sequence to strip from the stream.
	marker []byte

	// separators are extra record ends a terminator read also cuts at.
	separators [][]byte
}

var dialectPolicies = [...]dialectPolicy{
	DialectPlain: {
		name:            "FICS",
		echoFingerprint: "Starting FICS session",
		timeseal:        true,
		marker:          markerBytes,
	},
	DialectFatICS: {
		name:        "FatICS",
		fingerprint: "FatICS",
		stripEcho:   true,
		timeseal:    true,
		marker:      markerBytes,
	},
	DialectUSCN: {
		name:        "USCN",
		fingerprint: "puertorico.com",
		stripEcho:   true,
		timeseal:    true,
		marker:      markerBytes,
	},
	DialectICC: {
		name:        "ICC",
		fingerprint: "chessclub.com",
		stripEcho:   true,
		timeseal:    false,
		marker:      markerBytes,
		separators:  [][]byte{[]byte(DatagramEnd), []byte(UnitEnd)},
	},
}

// detectionOrder is the order fingerprints are tried in; first match wins.
var detectionOrder = []Dialect{DialectFatICS, DialectUSCN, DialectICC}

func (d Dialect) policy() *dialectPolicy {
	if d < DialectPlain || int(d) >= len(dialectPolicies) {
		return &dialectPolicies[DialectPlain]
	}
	return &dialectPolicies[d]
}

// String returns the family name.
func (d Dialect) String() string {
	return d.policy().name
}

// UsesTimeseal reports whether connections to this family encode their writes.
func (d Dialect) UsesTimeseal() bool {
	return d.policy().timeseal
}

// Separators returns the extra record separators for the family, if any.
func (d Dialect) Separators() []string {
	seps := d.policy().separators
	if len(seps) == 0 {
		return nil
	}
	out := make([]string, len(seps))
	for i, s := range seps {
		out[i] = string(s)
	}
	return out
}

// DetectDialect classifies the server from the first chunk it sent and
// returns the chunk with the telnet echo-suppress sequence removed where the
// family calls for it.
func DetectDialect(banner []byte) (Dialect, []byte) {
	dialect := classifyBanner(banner)
	return dialect, dialect.CleanBanner(banner)
}

func classifyBanner(banner []byte) Dialect {
	for _, d := range detectionOrder {
		if bytes.Contains(banner, []byte(d.policy().fingerprint)) {
			return d
		}
	}
	return DialectPlain
}

// CleanBanner removes TelnetEchoSuppress from a banner chunk if this family
// strips it. Families that never negotiate echo suppression still get the
// bytes injected by some servers and transports.
func (d Dialect) CleanBanner(banner []byte) []byte {
	p := d.policy()
	strip := p.stripEcho
	if !strip && p.echoFingerprint != "" {
		strip = bytes.Contains(banner, []byte(p.echoFingerprint))
	}
	if !strip {
		return banner
	}
	return bytes.ReplaceAll(banner, []byte(TelnetEchoSuppress), nil)
}

// DialectForHost classifies a server from its host name alone, before any
// byte has been received. Only ICC is recognized this way.
func DialectForHost(host string) Dialect {
	if strings.EqualFold(strings.TrimSuffix(host, "."), ICCHost) {
		return DialectICC
	}
	return DialectPlain
}
