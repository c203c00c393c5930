package call

import (
	"errors"
	"net"
	"time"

	"github.com/retrochat/retrovoice/pkg/audio"
)

// playbackLoop is the inbound half of the stream. Each iteration makes one
// bounded read attempt, then writes exactly one frame to the device: a real
// buffered frame when a full one is available, silence otherwise. The fixed
// write cadence keeps playback advancing through network jitter instead of
// stalling; the bounded read is what lets the loop notice the done flags.
func (t *Transport) playbackLoop(stream audio.Stream) {
	defer t.wg.Done()

	frameBytes := t.cfg.Audio.FrameBytes()
	jitter := newFrameBuffer(frameBytes)
	silence := make([]byte, frameBytes)
	readBuf := make([]byte, frameBytes)

	for !t.done() {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		n, err := t.conn.Read(readBuf)
		if n > 0 {
			jitter.Append(readBuf[:n])
		}
		if err != nil && !isTimeout(err) {
			// peer hung up or the connection dropped
			t.log.Debugf("receive ended: %v", err)
			break
		}

		frame, ok := jitter.PopFrame()
		if !ok {
			frame = silence
		}
		if err := stream.Write(frame); err != nil {
			t.log.Errorf("playback write: %v", err)
			break
		}
	}

	t.Stop()
	if err := stream.Close(); err != nil {
		t.log.Warnf("close playback stream: %v", err)
	}
	t.log.Debug("playback loop stopped")
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
