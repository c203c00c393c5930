package call

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/retrochat/retrovoice/pkg/audio"
	"github.com/retrochat/retrovoice/pkg/logger"
)

type State int

const (
	StateClosed State = iota
	StateRinging
	StateCalling
	StateTalking
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateRinging:
		return "ringing"
	case StateCalling:
		return "calling"
	case StateTalking:
		return "talking"
	default:
		return "unknown"
	}
}

// ErrBusy is returned when a call action conflicts with an already active
// call. At most one call exists per client; conflicting requests are
// refused, never queued.
var ErrBusy = errors.New("another call is active")

// countdownWindow is how many trailing seconds of the ring timeout get an
// advisory "stopping call in N seconds" progress message.
const countdownWindow = 6

// Session is the per-client call state machine. UI actions and inbound
// signaling events both funnel through it. It owns the media transport for
// the duration of the talking state and reports every state change to the
// Notifier.
type Session struct {
	cfg      Config
	device   audio.Device
	signaler Signaler
	notify   Notifier
	log      *zap.SugaredLogger

	mu        sync.Mutex
	state     State
	peer      string
	callID    CallID
	callKey   []byte
	transport *Transport
}

func NewSession(cfg Config, device audio.Device, signaler Signaler, notify Notifier, log *zap.SugaredLogger) *Session {
	if notify == nil {
		notify = nopNotifier{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		cfg:      cfg.withDefaults(),
		device:   device,
		signaler: signaler,
		notify:   notify,
		log:      log,
		state:    StateClosed,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *Session) Closed() bool {
	return s.State() == StateClosed
}

// StartCall begins an outbound call attempt: fresh credentials, a start-call
// signal to the peer, and the ring-timeout supervisor. While any call is
// active the request is refused without side effects.
func (s *Session) StartCall(peer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		s.log.Debugf("ignoring call to %s, session is %s", peer, s.state)
		return ErrBusy
	}

	id := NewCallID()
	key, err := NewCallKey()
	if err != nil {
		return err
	}

	if err := s.signaler.SendStartCall(peer, NewStartCallPayload(id, key)); err != nil {
		return fmt.Errorf("send start-call: %w", err)
	}

	s.peer = peer
	s.callID = id
	s.callKey = key
	s.setStateLocked(StateCalling)
	s.log.Infof("calling %s (call %s)", peer, id)
	s.notify.CallProgress("Calling " + peer + " ...")

	go s.superviseTimeout(id)
	return nil
}

// AcceptCall answers the currently ringing call and brings up the media
// transport.
func (s *Session) AcceptCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRinging {
		return fmt.Errorf("no ringing call to accept (session is %s)", s.state)
	}

	if err := s.signaler.SendAcceptCall(s.peer); err != nil {
		return fmt.Errorf("send accept-call: %w", err)
	}
	s.log.Infof("accepted call from %s", s.peer)
	s.notify.CallProgress("Accepted call from " + s.peer)
	s.startTransportLocked()
	return nil
}

// RejectCall declines the currently ringing call.
func (s *Session) RejectCall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRinging {
		return
	}

	if err := s.signaler.SendRejectCall(s.peer); err != nil {
		s.log.Warnf("send reject-call: %v", err)
	}
	s.log.Infof("rejected call from %s", s.peer)
	s.notify.CallProgress("Rejected call from " + s.peer)
	s.closeLocked()
}

// StopCall hangs up whatever call is in progress: cancels an outbound
// attempt, declines a ringing call, or ends an established one. Ending an
// established call stops the transport and leaves the final transition to
// closed to the transport teardown, so a new call cannot start before both
// media loops have exited.
func (s *Session) StopCall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return
	case StateCalling:
		if err := s.signaler.SendStopCall(s.peer); err != nil {
			s.log.Warnf("send stop-call: %v", err)
		}
		s.log.Infof("stopped calling %s", s.peer)
		s.notify.CallProgress("Stopped call with " + s.peer)
		s.closeLocked()
	case StateRinging:
		if err := s.signaler.SendRejectCall(s.peer); err != nil {
			s.log.Warnf("send reject-call: %v", err)
		}
		s.notify.CallProgress("Rejected call from " + s.peer)
		s.closeLocked()
	case StateTalking:
		if err := s.signaler.SendStopCall(s.peer); err != nil {
			s.log.Warnf("send stop-call: %v", err)
		}
		if s.transport != nil {
			s.transport.Stop()
		}
	}
}

// HandleIncomingCall processes a start-call signal. While another call is
// active the attempt is rejected immediately and counts as missed.
func (s *Session) HandleIncomingCall(peer string, id CallID, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		s.log.Infof("missed call from %s while %s", peer, s.state)
		s.notify.CallProgress("Missed call from " + peer)
		if err := s.signaler.SendRejectCall(peer); err != nil {
			s.log.Warnf("send reject-call: %v", err)
		}
		return
	}

	s.peer = peer
	s.callID = id
	s.callKey = key
	s.setStateLocked(StateRinging)
	s.log.Infof("incoming call from %s (call %s)", peer, id)
	s.notify.CallProgress("Incoming call from " + peer)
}

// HandleCallAccepted processes an accept-call signal from the peer we are
// calling. Signals from anyone else, or duplicates once talking, are
// ignored.
func (s *Session) HandleCallAccepted(peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCalling || peer != s.peer {
		s.log.Debugf("ignoring accept-call from %s (session is %s with %s)", peer, s.state, s.peer)
		return
	}

	s.log.Infof("%s accepted the call", peer)
	s.notify.CallProgress(peer + " accepted your call")
	s.startTransportLocked()
}

// HandleCallRejected processes a reject-call signal for our outbound
// attempt.
func (s *Session) HandleCallRejected(peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCalling || peer != s.peer {
		return
	}

	s.log.Infof("%s rejected the call", peer)
	s.notify.CallProgress(peer + " rejected your call")
	s.closeLocked()
}

// HandleCallStopped processes a stop-call signal from the current peer at
// any stage: cancelled ring, withdrawn attempt, or hangup mid-call.
func (s *Session) HandleCallStopped(peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed || peer != s.peer {
		return
	}

	s.log.Infof("%s ended the call", peer)
	s.notify.CallProgress("Call ended")

	if s.state == StateTalking {
		if s.transport != nil {
			s.transport.Stop()
		}
		return
	}
	s.closeLocked()
}

// superviseTimeout bounds an outbound attempt. It polls once per second; if
// anything moved the session out of calling (accept, reject, local cancel)
// it exits without side effects. The re-check directly before cancelling
// keeps an accept that races the deadline from being cancelled; the check
// is best effort, not linearizable.
func (s *Session) superviseTimeout(id CallID) {
	window := int(s.cfg.CallTimeout / time.Second)
	if window < 1 {
		window = 1
	}

	for i := 0; i < window; i++ {
		if !s.stillCalling(id) {
			return
		}
		time.Sleep(time.Second)
		remaining := window - i - 1
		if remaining < countdownWindow && s.stillCalling(id) {
			s.notify.CallProgress(fmt.Sprintf("Stopping call in %d seconds", remaining))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCalling || s.callID != id {
		return
	}

	s.log.Infof("call to %s not answered within %s", s.peer, s.cfg.CallTimeout)
	if err := s.signaler.SendStopCall(s.peer); err != nil {
		s.log.Warnf("send stop-call: %v", err)
	}
	s.notify.CallProgress("Stopped call with " + s.peer)
	s.closeLocked()
}

func (s *Session) stillCalling(id CallID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateCalling && s.callID == id
}

func (s *Session) startTransportLocked() {
	tr := newTransport(s.cfg, s.callID, s.device, s.log)
	s.transport = tr
	s.setStateLocked(StateTalking)
	go func() {
		s.transportDone(tr, tr.Run())
	}()
}

// transportDone runs when the media path has fully wound down (or failed to
// come up) and returns the session to closed.
func (s *Session) transportDone(tr *Transport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport != tr {
		return
	}
	s.transport = nil

	switch {
	case err == nil:
		s.log.Infof("call with %s ended", s.peer)
		s.notify.CallProgress("Call with " + s.peer + " ended")
	case errors.Is(err, ErrPeerNotJoined):
		s.log.Warnf("call %s: %v", s.callID, err)
		s.notify.CallProgress(s.peer + " did not join the call")
	default:
		s.log.Errorf("call %s transport failed: %v", s.callID, err)
		s.notify.CallProgress("Call failed: " + err.Error())
	}
	s.closeLocked()
}

func (s *Session) setStateLocked(state State) {
	s.state = state
	s.notify.CallStateChanged(state)
}

func (s *Session) closeLocked() {
	s.callKey = nil
	s.setStateLocked(StateClosed)
}
