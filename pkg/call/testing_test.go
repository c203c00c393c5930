package call

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retrochat/retrovoice/pkg/audio"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func testAudioConfig() audio.Config {
	return audio.Config{SampleRate: 8000, Channels: 1, FrameSamples: 16}
}

func testConfig(relayAddr string) Config {
	return Config{
		RelayAddr:        relayAddr,
		Audio:            testAudioConfig(),
		CallTimeout:      10 * time.Second,
		HandshakeTimeout: 500 * time.Millisecond,
		ReadTimeout:      20 * time.Millisecond,
		DialTimeout:      500 * time.Millisecond,
	}
}

type startRecord struct {
	peer    string
	payload StartCallPayload
}

type fakeSignaler struct {
	mu       sync.Mutex
	failWith error
	starts   []startRecord
	accepts  []string
	rejects  []string
	stops    []string
}

func (f *fakeSignaler) SendStartCall(peer string, payload StartCallPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.starts = append(f.starts, startRecord{peer: peer, payload: payload})
	return nil
}

func (f *fakeSignaler) SendAcceptCall(peer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.accepts = append(f.accepts, peer)
	return nil
}

func (f *fakeSignaler) SendRejectCall(peer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.rejects = append(f.rejects, peer)
	return nil
}

func (f *fakeSignaler) SendStopCall(peer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.stops = append(f.stops, peer)
	return nil
}

func (f *fakeSignaler) Starts() []startRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]startRecord(nil), f.starts...)
}

func (f *fakeSignaler) Accepts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.accepts...)
}

func (f *fakeSignaler) Rejects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rejects...)
}

func (f *fakeSignaler) Stops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stops...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	states   []State
	progress []string
}

func (f *fakeNotifier) CallStateChanged(state State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeNotifier) CallProgress(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, text)
}

func (f *fakeNotifier) States() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.states...)
}

func (f *fakeNotifier) Progress() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.progress...)
}

// fakeDevice hands out scripted capture streams and a recording playback
// stream, and counts opens so tests can assert no worker ever started.
type fakeDevice struct {
	mu            sync.Mutex
	captureErr    error
	playbackErr   error
	captureFrames int // frames before EOF; 0 means unlimited
	captureDelay  time.Duration
	captureFill   byte
	playback      *recordingPlayback
	captureOpens  int
	playbackOpens int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{playback: &recordingPlayback{}, captureDelay: 2 * time.Millisecond}
}

func (d *fakeDevice) OpenCapture(cfg audio.Config) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captureOpens++
	if d.captureErr != nil {
		return nil, d.captureErr
	}
	return &scriptedCapture{
		frames:    d.captureFrames,
		unlimited: d.captureFrames == 0,
		delay:     d.captureDelay,
		fill:      d.captureFill,
	}, nil
}

func (d *fakeDevice) OpenPlayback(cfg audio.Config) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playbackOpens++
	if d.playbackErr != nil {
		return nil, d.playbackErr
	}
	return d.playback, nil
}

func (d *fakeDevice) Close() error {
	return nil
}

func (d *fakeDevice) opens() (capture, playback int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captureOpens, d.playbackOpens
}

type scriptedCapture struct {
	mu        sync.Mutex
	frames    int
	unlimited bool
	delay     time.Duration
	fill      byte
	closed    bool
}

func (c *scriptedCapture) Read(frame []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("capture stream closed")
	}
	if !c.unlimited {
		if c.frames == 0 {
			c.mu.Unlock()
			return io.EOF
		}
		c.frames--
	}
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	for i := range frame {
		frame[i] = c.fill
	}
	return nil
}

func (c *scriptedCapture) Write([]byte) error {
	return errors.New("capture stream is input only")
}

func (c *scriptedCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type recordingPlayback struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (p *recordingPlayback) Read([]byte) error {
	return errors.New("playback stream is output only")
}

func (p *recordingPlayback) Write(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("playback stream closed")
	}
	p.frames = append(p.frames, append([]byte(nil), frame...))
	return nil
}

func (p *recordingPlayback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPlayback) Frames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.frames...)
}

func (p *recordingPlayback) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func isSilence(frame []byte) bool {
	for _, b := range frame {
		if b != 0 {
			return false
		}
	}
	return true
}

func nonSilent(frames [][]byte) [][]byte {
	var out [][]byte
	for _, f := range frames {
		if !isSilence(f) {
			out = append(out, f)
		}
	}
	return out
}

// startStubRelay runs a minimal relay endpoint applying fn to every
// connection once the call id has been read. Returns the dial address.
func startStubRelay(t *testing.T, fn func(conn net.Conn, id CallID)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				var id CallID
				if _, err := io.ReadFull(c, id[:]); err != nil {
					return
				}
				fn(c, id)
			}(conn)
		}
	}()
	return ln.Addr().String()
}

// joinAndHold confirms the rendezvous and swallows the media stream.
func joinAndHold(conn net.Conn, id CallID) {
	_, _ = conn.Write([]byte{HandshakeJoined})
	_, _ = io.Copy(io.Discard, conn)
}
