package stream

import "bytes"

// Tags on the first line of a replication block.
const (
	TagConfig = "config"
	TagEvent  = "event"
)

var tagOrder = []struct {
	tag string
	typ Type
}{
	{TagConfig, ReplicationConfig},
	{TagEvent, ReplicationEvent},
}

// ReplicationDecoder extracts typed records from the replication stream.
// Unlike Decoder it keeps every record: each event carries a state change
// that a later event does not repeat.
//
// A ReplicationDecoder belongs to a single poll loop and is not safe for
// concurrent use.
type ReplicationDecoder struct {
	buf       []byte
	maxBuf    int
	discarded int
}

// NewReplicationDecoder returns a decoder with the default buffer bound.
func NewReplicationDecoder() *ReplicationDecoder {
	return &ReplicationDecoder{maxBuf: DefaultMaxBuffer}
}

// Append adds raw output. It never blocks and accepts any chunking.
func (d *ReplicationDecoder) Append(chunk []byte) {
	d.buf = append(d.buf, chunk...)
	d.buf = stripResets(d.buf)

	var dropped int
	d.buf, dropped = trimIdle(d.buf, d.maxBuf)
	d.discarded += dropped
}

// Write implements io.Writer.
func (d *ReplicationDecoder) Write(p []byte) (int, error) {
	d.Append(p)
	return len(p), nil
}

// Drain removes and returns every complete record. Each pass takes at most
// one record per tag, config before event; passes repeat until one yields
// nothing. Within a tag, records keep their stream order. A canonical error
// block yields an Error frame. Blocks with an unknown tag are dropped.
func (d *ReplicationDecoder) Drain() []Frame {
	var out []Frame
	d.dropLeading()
	d.dropAbandoned()
	for {
		progressed := false

		if i, j, ok := d.findError(); ok {
			d.remove(i, j)
			out = append(out, Frame{Type: Error})
			progressed = true
		}

		for _, t := range tagOrder {
			i, j, payload, ok := d.findTagged(t.tag)
			if !ok {
				continue
			}
			d.remove(i, j)
			out = append(out, Frame{Type: t.typ, Text: payloadText(payload)})
			progressed = true
		}

		if d.dropUnknown() {
			progressed = true
		}

		if !progressed {
			d.dropLeading()
			return out
		}
	}
}

// Buffered returns the number of bytes waiting for a done sentinel.
func (d *ReplicationDecoder) Buffered() int {
	return len(d.buf)
}

// Discarded returns the number of bytes dropped outside of any record.
func (d *ReplicationDecoder) Discarded() int {
	return d.discarded
}

// Reset forgets all buffered input.
func (d *ReplicationDecoder) Reset() {
	d.buf = nil
}

type block struct {
	start, end int // byte range of the whole block in buf
	tag        string
	payload    []byte
}

// blocks lists complete blocks in stream order without consuming them.
func (d *ReplicationDecoder) blocks() []block {
	var out []block
	off := 0
	for off < len(d.buf) {
		rel := bytes.Index(d.buf[off:], doneBytes)
		if rel < 0 {
			break
		}
		doneAt := off + rel
		end := doneAt + len(doneBytes)
		s := bytes.LastIndex(d.buf[off:doneAt], startBytes)
		if s < 0 {
			off = end
			continue
		}
		s += off
		body := d.buf[s+len(startBytes) : doneAt]
		tag, payload := splitTag(body)
		out = append(out, block{start: s, end: end, tag: tag, payload: payload})
		off = end
	}
	return out
}

func (d *ReplicationDecoder) findTagged(tag string) (int, int, []byte, bool) {
	for _, b := range d.blocks() {
		if b.tag == tag {
			return b.start, b.end, append([]byte(nil), b.payload...), true
		}
	}
	return 0, 0, nil, false
}

func (d *ReplicationDecoder) findError() (int, int, bool) {
	for _, b := range d.blocks() {
		if string(d.buf[b.start+len(startBytes):b.end-len(doneBytes)]) == errorPayload {
			return b.start, b.end, true
		}
	}
	return 0, 0, false
}

// dropUnknown removes the first block whose tag no pass will ever take.
func (d *ReplicationDecoder) dropUnknown() bool {
	for _, b := range d.blocks() {
		if b.tag == TagConfig || b.tag == TagEvent {
			continue
		}
		if string(d.buf[b.start+len(startBytes):b.end-len(doneBytes)]) == errorPayload {
			continue
		}
		d.discarded += b.end - b.start
		d.remove(b.start, b.end)
		return true
	}
	return false
}

// dropAbandoned removes bytes between complete blocks, such as a start line
// whose block was cut off. A later done sentinel always pairs with a later
// start, so these bytes can never become part of a record.
func (d *ReplicationDecoder) dropAbandoned() {
	blocks := d.blocks()
	if len(blocks) == 0 {
		return
	}
	out := make([]byte, 0, len(d.buf))
	prev := 0
	for _, b := range blocks {
		d.discarded += b.start - prev
		out = append(out, d.buf[b.start:b.end]...)
		prev = b.end
	}
	d.buf = append(out, d.buf[prev:]...)
}

func (d *ReplicationDecoder) dropLeading() {
	var lead int
	d.buf, lead = dropLeading(d.buf)
	d.discarded += lead
}

func (d *ReplicationDecoder) remove(i, j int) {
	d.buf = append(d.buf[:i], d.buf[j:]...)
}

// splitTag separates the tag line from the payload.
func splitTag(body []byte) (string, []byte) {
	nl := bytes.Index(body, []byte("\r\n"))
	if nl < 0 {
		return string(body), nil
	}
	return string(body[:nl]), body[nl+2:]
}
