package stream

// Decoder turns the cluster status stream into frames. Only the most recent
// complete frame is held; a newer frame replaces one that was never read.
//
// A Decoder belongs to a single poll loop and is not safe for concurrent use.
type Decoder struct {
	buf       []byte
	latest    Frame
	pending   bool
	maxBuf    int
	discarded int
}

// NewDecoder returns a decoder with the default buffer bound.
func NewDecoder() *Decoder {
	return &Decoder{maxBuf: DefaultMaxBuffer}
}

// SetMaxBuffer changes the idle buffer bound. Zero disables trimming.
func (d *Decoder) SetMaxBuffer(n int) {
	d.maxBuf = n
}

// Append adds raw output. It never blocks and accepts any chunking.
func (d *Decoder) Append(chunk []byte) {
	d.buf = append(d.buf, chunk...)
	d.buf = stripResets(d.buf)

	for {
		payload, rest, skipped, ok := cutBlock(d.buf)
		d.discarded += skipped
		if !ok {
			var lead int
			d.buf, lead = dropLeading(rest)
			d.discarded += lead
			d.buf = compact(d.buf)
			break
		}
		d.buf = rest
		d.latest = classify(payload)
		d.pending = true
	}

	var dropped int
	d.buf, dropped = trimIdle(d.buf, d.maxBuf)
	d.discarded += dropped
}

// Write implements io.Writer so a Decoder can sit behind a remote command's
// stdout.
func (d *Decoder) Write(p []byte) (int, error) {
	d.Append(p)
	return len(p), nil
}

// Next returns the most recent complete frame, if one arrived since the
// last call.
func (d *Decoder) Next() (Frame, bool) {
	if !d.pending {
		return Frame{}, false
	}
	d.pending = false
	f := d.latest
	d.latest = Frame{}
	return f, true
}

// Buffered returns the number of bytes waiting for a done sentinel.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Discarded returns the number of bytes dropped because they were outside
// any frame.
func (d *Decoder) Discarded() int {
	return d.discarded
}

// Reset forgets all buffered input, e.g. when a new session starts.
func (d *Decoder) Reset() {
	d.buf = nil
	d.latest = Frame{}
	d.pending = false
}

func classify(payload []byte) Frame {
	if string(payload) == errorPayload {
		return Frame{Type: Error}
	}
	return Frame{Type: FullStatus, Text: payloadText(payload)}
}

// compact copies a short remainder so the backing array of a large,
// already-consumed buffer can be collected.
func compact(buf []byte) []byte {
	if cap(buf) > 4096 && len(buf) < cap(buf)/4 {
		out := make([]byte, len(buf))
		copy(out, buf)
		return out
	}
	return buf
}
