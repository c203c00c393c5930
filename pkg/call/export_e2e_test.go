package call

import (
	"time"

	"go.uber.org/zap"
)

// Bridges for the external e2e test package. The end-to-end test has to live
// in package call_test because it imports internal/relay, which itself
// imports pkg/call; an in-package test would form an import cycle.

func E2ELogger() *zap.SugaredLogger { return testLogger() }

func E2EConfig(relayAddr string) Config { return testConfig(relayAddr) }

func NewE2EFakeDevice() *fakeDevice { return newFakeDevice() }

func (d *fakeDevice) E2ESetCaptureFrames(n int)          { d.captureFrames = n }
func (d *fakeDevice) E2ESetCaptureDelay(v time.Duration) { d.captureDelay = v }
func (d *fakeDevice) E2ESetCaptureFill(b byte)           { d.captureFill = b }
func (d *fakeDevice) E2EPlaybackFrames() [][]byte        { return d.playback.Frames() }

func NewE2EFakeSignaler() *fakeSignaler { return &fakeSignaler{} }
func NewE2EFakeNotifier() *fakeNotifier { return &fakeNotifier{} }

func (r startRecord) Payload() StartCallPayload { return r.payload }

func E2ENonSilent(frames [][]byte) [][]byte { return nonSilent(frames) }
