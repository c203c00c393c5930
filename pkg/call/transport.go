package call

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/retrochat/retrovoice/pkg/audio"
)

var (
	// ErrPeerNotJoined means the relay answered that nobody else showed up
	// for this call id. A negative outcome, not a protocol failure.
	ErrPeerNotJoined = errors.New("calling partner did not join")

	ErrInvalidHandshake = errors.New("invalid relay handshake response")
)

// Transport runs the media path of one call: relay rendezvous, then one
// goroutine per direction until both have stopped. Run returns only after
// both loops exited, the device streams are closed and the connection is
// down, so the session can treat its return as full teardown.
type Transport struct {
	cfg    Config
	callID CallID
	device audio.Device
	log    *zap.SugaredLogger

	conn net.Conn

	captureDone  atomic.Bool
	playbackDone atomic.Bool
	wg           sync.WaitGroup
}

func newTransport(cfg Config, callID CallID, device audio.Device, log *zap.SugaredLogger) *Transport {
	return &Transport{
		cfg:    cfg,
		callID: callID,
		device: device,
		log:    log,
	}
}

// Stop asks both loops to finish. Each observes the flags within one bounded
// I/O cycle; Run unblocks once both have exited.
func (t *Transport) Stop() {
	t.captureDone.Store(true)
	t.playbackDone.Store(true)
}

func (t *Transport) done() bool {
	return t.captureDone.Load() || t.playbackDone.Load()
}

func (t *Transport) Run() error {
	conn, err := t.handshake()
	if err != nil {
		return err
	}
	t.conn = conn

	capture, err := t.device.OpenCapture(t.cfg.Audio)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open capture device: %w", err)
	}
	playback, err := t.device.OpenPlayback(t.cfg.Audio)
	if err != nil {
		_ = capture.Close()
		_ = conn.Close()
		return fmt.Errorf("open playback device: %w", err)
	}

	t.wg.Add(2)
	go t.captureLoop(capture)
	go t.playbackLoop(playback)
	t.wg.Wait()

	_ = conn.Close()
	t.log.Infof("call %s media path closed", t.callID)
	return nil
}

// handshake connects to the relay, presents the call id and waits for the
// single-byte verdict.
func (t *Transport) handshake() (net.Conn, error) {
	t.log.Debugf("connecting to audio relay %s", t.cfg.RelayAddr)

	conn, err := net.DialTimeout("tcp", t.cfg.RelayAddr, t.cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to audio relay: %w", err)
	}

	if _, err := conn.Write(t.callID[:]); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send call id: %w", err)
	}
	t.log.Debugf("sent call id %s", t.callID)

	_ = conn.SetReadDeadline(time.Now().Add(t.cfg.HandshakeTimeout))
	resp := make([]byte, 1)
	if _, err := io.ReadFull(conn, resp); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("relay handshake: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch resp[0] {
	case HandshakeJoined:
		t.log.Infof("calling partner joined, call %s started", t.callID)
		return conn, nil
	case HandshakeNoPartner:
		_ = conn.Close()
		return nil, ErrPeerNotJoined
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidHandshake, resp[0])
	}
}
