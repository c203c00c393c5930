package relay

import (
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/retrochat/retrovoice/pkg/call"
)

const idReadTimeout = 5 * time.Second

type Config struct {
	// ListenAddr is the media endpoint clients dial, e.g. ":4433".
	ListenAddr string

	// JoinTimeout is how long a lone leg may wait for its partner before
	// the relay answers '2' and drops it.
	JoinTimeout time.Duration
}

type Stats struct {
	Waiting   int   `json:"waiting"`
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
	Expired   int64 `json:"expired"`
}

type Event struct {
	Type   string    `json:"type"` // waiting, paired, ended, expired
	CallID string    `json:"call_id"`
	Time   time.Time `json:"time"`
}

// Server rendezvouses the two legs of a call by call id and pumps raw
// frames between them. It never looks inside the stream.
type Server struct {
	cfg Config
	log *zap.SugaredLogger

	mu        sync.Mutex
	waiting   map[call.CallID]*leg
	active    int
	completed int64
	expired   int64
	subs      map[chan Event]struct{}

	ln       net.Listener
	stopOnce sync.Once
	stopCh   chan struct{}
}

type leg struct {
	partner chan net.Conn
}

func New(cfg Config, log *zap.SugaredLogger) *Server {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = 10 * time.Second
	}
	return &Server{
		cfg:     cfg,
		log:     log,
		waiting: make(map[call.CallID]*leg),
		subs:    make(map[chan Event]struct{}),
		stopCh:  make(chan struct{}),
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	go s.acceptLoop()
	return nil
}

// Addr is the bound listen address, useful when ListenAddr used port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.ListenAddr
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				s.log.Errorf("relay accept: %v", err)
			}
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	var id call.CallID
	_ = conn.SetReadDeadline(time.Now().Add(idReadTimeout))
	if _, err := io.ReadFull(conn, id[:]); err != nil {
		s.log.Warnf("relay: bad rendezvous from %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	s.mu.Lock()
	if l, ok := s.waiting[id]; ok {
		// second leg: hand the connection to the waiting goroutine
		delete(s.waiting, id)
		s.mu.Unlock()
		l.partner <- conn
		return
	}
	l := &leg{partner: make(chan net.Conn, 1)}
	s.waiting[id] = l
	s.mu.Unlock()

	s.log.Debugf("call %s waiting for partner (%s)", id, conn.RemoteAddr())
	s.publish(Event{Type: "waiting", CallID: id.String()})

	select {
	case partner := <-l.partner:
		s.runCall(id, conn, partner)
	case <-time.After(s.cfg.JoinTimeout):
		s.mu.Lock()
		if _, still := s.waiting[id]; still {
			delete(s.waiting, id)
			s.expired++
			s.mu.Unlock()
			s.log.Infof("call %s expired, no partner within %s", id, s.cfg.JoinTimeout)
			_, _ = conn.Write([]byte{call.HandshakeNoPartner})
			_ = conn.Close()
			s.publish(Event{Type: "expired", CallID: id.String()})
			return
		}
		s.mu.Unlock()
		// partner arrived just as the window lapsed
		s.runCall(id, conn, <-l.partner)
	case <-s.stopCh:
		s.mu.Lock()
		delete(s.waiting, id)
		s.mu.Unlock()
		_ = conn.Close()
	}
}

// runCall confirms the rendezvous to both legs and pumps bytes in both
// directions until either side goes away, then drops both.
func (s *Server) runCall(id call.CallID, a, b net.Conn) {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	s.log.Infof("call %s paired (%s <-> %s)", id, a.RemoteAddr(), b.RemoteAddr())
	s.publish(Event{Type: "paired", CallID: id.String()})

	ok := true
	if _, err := a.Write([]byte{call.HandshakeJoined}); err != nil {
		ok = false
	}
	if ok {
		if _, err := b.Write([]byte{call.HandshakeJoined}); err != nil {
			ok = false
		}
	}

	if ok {
		var wg sync.WaitGroup
		wg.Add(2)
		pump := func(dst, src net.Conn) {
			defer wg.Done()
			_, _ = io.Copy(dst, src)
			// one direction is gone, unblock the other
			_ = dst.Close()
			_ = src.Close()
		}
		go pump(a, b)
		go pump(b, a)
		wg.Wait()
	} else {
		_ = a.Close()
		_ = b.Close()
	}

	s.mu.Lock()
	s.active--
	s.completed++
	s.mu.Unlock()

	s.log.Infof("call %s ended", id)
	s.publish(Event{Type: "ended", CallID: id.String()})
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Waiting:   len(s.waiting),
		Active:    s.active,
		Completed: s.completed,
		Expired:   s.expired,
	}
}

// Subscribe registers an event feed for the status API. Slow consumers lose
// events instead of blocking the relay.
func (s *Server) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Server) publish(ev Event) {
	ev.Time = time.Now()
	s.mu.Lock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}
