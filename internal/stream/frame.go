// Package stream decodes the framed text that crmon's remote helpers print.
//
// A helper writes one frame per polling cycle:
//
//	---start---\r\n
//	<payload>
//	---done---\r\n
//
// and may write ---reset--- anywhere to tell the reader to forget the token.
// The cluster status stream carries one payload per frame; the replication
// stream prefixes each payload with a tag line ("config" or "event").
package stream

import "bytes"

// Wire sentinels. These are bit-exact.
const (
	StartSentinel = "---start---\r\n"
	DoneSentinel  = "---done---\r\n"
	ResetToken    = "---reset---"

	// ErrorFrame is the complete canonical error frame.
	ErrorFrame = StartSentinel + errorPayload + DoneSentinel

	errorPayload = "error\r\n\r\n"
)

// DefaultMaxBuffer bounds the bytes held while no frame has started.
const DefaultMaxBuffer = 4 << 20

// Type classifies a decoded frame.
type Type int

const (
	// FullStatus carries a complete cluster status document.
	FullStatus Type = iota
	// Error is the remote helper's canonical failure response.
	Error
	// ReplicationConfig carries one host's replication configuration.
	ReplicationConfig
	// ReplicationEvent carries one or more replication state events.
	ReplicationEvent
)

func (t Type) String() string {
	switch t {
	case FullStatus:
		return "full-status"
	case Error:
		return "error"
	case ReplicationConfig:
		return "replication-config"
	case ReplicationEvent:
		return "replication-event"
	default:
		return "unknown"
	}
}

// Frame is one decoded polling cycle. Frames are values and never alias the
// decoder's buffer.
type Frame struct {
	Type Type
	Text string
}

var (
	startBytes = []byte(StartSentinel)
	doneBytes  = []byte(DoneSentinel)
	resetBytes = []byte(ResetToken)
)

// stripResets deletes every reset token, including ones formed by an earlier
// deletion.
func stripResets(buf []byte) []byte {
	for {
		i := bytes.Index(buf, resetBytes)
		if i < 0 {
			return buf
		}
		buf = append(buf[:i], buf[i+len(resetBytes):]...)
	}
}

// cutBlock finds the first complete block in buf. A block runs from the
// last start sentinel before the first done sentinel. skipped is the number
// of bytes before the block (or before a done sentinel with no start) that
// carry no frame.
func cutBlock(buf []byte) (payload []byte, rest []byte, skipped int, ok bool) {
	for {
		d := bytes.Index(buf, doneBytes)
		if d < 0 {
			return nil, buf, skipped, false
		}
		s := bytes.LastIndex(buf[:d], startBytes)
		if s < 0 {
			skipped += d + len(doneBytes)
			buf = buf[d+len(doneBytes):]
			continue
		}
		skipped += s
		payload = append([]byte(nil), buf[s+len(startBytes):d]...)
		return payload, buf[d+len(doneBytes):], skipped, true
	}
}

// trimIdle drops bytes that cannot belong to a frame once buf grows past
// max without a start sentinel. The tail that could still be the beginning
// of a sentinel is kept.
func trimIdle(buf []byte, max int) ([]byte, int) {
	if max <= 0 || len(buf) <= max || bytes.Contains(buf, startBytes) {
		return buf, 0
	}
	keep := len(StartSentinel) - 1
	if keep > len(buf) {
		keep = len(buf)
	}
	dropped := len(buf) - keep
	out := make([]byte, keep)
	copy(out, buf[dropped:])
	return out, dropped
}

// dropLeading removes bytes before the first start sentinel. They can no
// longer become part of a frame.
func dropLeading(buf []byte) ([]byte, int) {
	i := bytes.Index(buf, startBytes)
	if i <= 0 {
		return buf, 0
	}
	return buf[i:], i
}

func payloadText(payload []byte) string {
	return string(bytes.TrimSuffix(payload, []byte("\r\n")))
}
