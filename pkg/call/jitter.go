package call

// frameBuffer smooths irregular network arrivals into fixed-size playback
// frames. Bytes go in as they arrive; a frame comes out only when a full
// one is buffered. Used by the playback loop only, so no locking.
type frameBuffer struct {
	frameSize int
	buf       []byte
}

func newFrameBuffer(frameSize int) *frameBuffer {
	return &frameBuffer{frameSize: frameSize}
}

func (b *frameBuffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

func (b *frameBuffer) Buffered() int {
	return len(b.buf)
}

// PopFrame removes and returns the oldest full frame, or false if less than
// one frame is buffered.
func (b *frameBuffer) PopFrame() ([]byte, bool) {
	if len(b.buf) < b.frameSize {
		return nil, false
	}
	frame := make([]byte, b.frameSize)
	copy(frame, b.buf)
	n := copy(b.buf, b.buf[b.frameSize:])
	b.buf = b.buf[:n]
	return frame, true
}
