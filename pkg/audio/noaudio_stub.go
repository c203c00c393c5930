//go:build noaudio

package audio

import "errors"

var errNoAudio = errors.New("audio disabled in this build")

type PortAudioDevice struct{}

func NewPortAudioDevice() (*PortAudioDevice, error) {
	return nil, errNoAudio
}

func (d *PortAudioDevice) Close() error {
	return nil
}

func (d *PortAudioDevice) OpenCapture(cfg Config) (Stream, error) {
	_ = cfg
	return nil, errNoAudio
}

func (d *PortAudioDevice) OpenPlayback(cfg Config) (Stream, error) {
	_ = cfg
	return nil, errNoAudio
}
