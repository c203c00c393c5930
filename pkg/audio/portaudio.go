//go:build !noaudio

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDevice opens the default host input/output devices through
// portaudio. One instance owns the portaudio runtime; Close terminates it.
type PortAudioDevice struct {
	closeOnce sync.Once
}

func NewPortAudioDevice() (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &PortAudioDevice{}, nil
}

func (d *PortAudioDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = portaudio.Terminate()
	})
	return err
}

func (d *PortAudioDevice) OpenCapture(cfg Config) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	in, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, err
	}

	params := portaudio.HighLatencyParameters(in, nil)
	params.SampleRate = float64(cfg.SampleRate)
	params.Input.Channels = cfg.Channels
	params.FramesPerBuffer = cfg.FrameSamples

	buf := make([]int16, cfg.FrameSamples*cfg.Channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return &paStream{stream: stream, buf: buf}, nil
}

func (d *PortAudioDevice) OpenPlayback(cfg Config) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, err
	}

	params := portaudio.HighLatencyParameters(nil, out)
	params.SampleRate = float64(cfg.SampleRate)
	params.Output.Channels = cfg.Channels
	params.FramesPerBuffer = cfg.FrameSamples

	buf := make([]int16, cfg.FrameSamples*cfg.Channels)
	stream, err := portaudio.OpenStream(params, &buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return &paStream{stream: stream, buf: buf}, nil
}

type paStream struct {
	stream *portaudio.Stream
	buf    []int16
}

func (s *paStream) Read(frame []byte) error {
	if len(frame) != len(s.buf)*2 {
		return errors.New("frame size mismatch")
	}
	if err := s.stream.Read(); err != nil {
		return err
	}
	for i, v := range s.buf {
		binary.LittleEndian.PutUint16(frame[2*i:], uint16(v))
	}
	return nil
}

func (s *paStream) Write(frame []byte) error {
	if len(frame) != len(s.buf)*2 {
		return errors.New("frame size mismatch")
	}
	for i := range s.buf {
		s.buf[i] = int16(binary.LittleEndian.Uint16(frame[2*i:]))
	}
	return s.stream.Write()
}

func (s *paStream) Close() error {
	_ = s.stream.Stop()
	return s.stream.Close()
}
