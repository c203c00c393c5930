package call

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Relay rendezvous protocol: the client sends its 16-byte call id and the
// relay answers with a single byte.
const (
	CallIDSize = 16

	HandshakeJoined    byte = '1' // partner joined, streaming may start
	HandshakeNoPartner byte = '2' // nobody joined within the relay's window
)

// CallKeySize is the length of the symmetric key exchanged in the start-call
// payload. The key is opaque to this subsystem; the messaging layer uses it.
const CallKeySize = 32

// CallID identifies one call attempt. The caller generates a fresh one per
// attempt; both legs present it to the relay as the rendezvous token.
type CallID [CallIDSize]byte

func NewCallID() CallID {
	return CallID(uuid.New())
}

func (id CallID) String() string {
	return hex.EncodeToString(id[:])
}

func ParseCallID(s string) (CallID, error) {
	var id CallID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid call id: %w", err)
	}
	if len(b) != CallIDSize {
		return id, errors.New("invalid call id length")
	}
	copy(id[:], b)
	return id, nil
}

func NewCallKey() ([]byte, error) {
	key := make([]byte, CallKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate call key: %w", err)
	}
	return key, nil
}

// StartCallPayload is the body of a start-call signal. The call id travels
// as hex, the key as base64, matching what the server-side relay and older
// clients expect.
type StartCallPayload struct {
	CallID  string `json:"callid"`
	CallKey string `json:"callkey"`
}

func NewStartCallPayload(id CallID, key []byte) StartCallPayload {
	return StartCallPayload{
		CallID:  id.String(),
		CallKey: base64.StdEncoding.EncodeToString(key),
	}
}

func (p StartCallPayload) Decode() (CallID, []byte, error) {
	id, err := ParseCallID(p.CallID)
	if err != nil {
		return id, nil, err
	}
	key, err := base64.StdEncoding.DecodeString(p.CallKey)
	if err != nil {
		return id, nil, fmt.Errorf("invalid call key: %w", err)
	}
	return id, key, nil
}

func (p StartCallPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

func UnmarshalStartCall(raw []byte) (StartCallPayload, error) {
	var p StartCallPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	if p.CallID == "" {
		return p, errors.New("start-call payload missing call id")
	}
	return p, nil
}

// Signaler carries call-control signals to the peer over the chat client's
// encrypted message channel. Implementations live outside this package.
type Signaler interface {
	SendStartCall(peer string, payload StartCallPayload) error
	SendAcceptCall(peer string) error
	SendRejectCall(peer string) error
	SendStopCall(peer string) error
}

// Notifier is the UI-facing sink for state changes and progress text.
// Callbacks run on session goroutines and must not call back into the
// Session synchronously.
type Notifier interface {
	CallStateChanged(state State)
	CallProgress(text string)
}

type nopNotifier struct{}

func (nopNotifier) CallStateChanged(State) {}
func (nopNotifier) CallProgress(string)    {}
