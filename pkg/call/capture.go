package call

import "github.com/retrochat/retrovoice/pkg/audio"

// captureLoop is the outbound half of the stream: one microphone frame in,
// one connection write out, until either direction is done. Any error stops
// the loop; the exit path always marks both directions done so the playback
// loop cannot outlive this one.
func (t *Transport) captureLoop(stream audio.Stream) {
	defer t.wg.Done()

	frame := make([]byte, t.cfg.Audio.FrameBytes())
	for !t.done() {
		if err := stream.Read(frame); err != nil {
			t.log.Errorf("capture read: %v", err)
			break
		}
		if _, err := t.conn.Write(frame); err != nil {
			t.log.Errorf("send frame: %v", err)
			break
		}
	}

	t.Stop()
	if err := stream.Close(); err != nil {
		t.log.Warnf("close capture stream: %v", err)
	}
	t.log.Debug("capture loop stopped")
}
