package audio

import "errors"

// Frame parameters of the media stream. Both call ends and the relay move
// raw little-endian PCM in fixed-size frames, so every component must agree
// on these values.
const (
	DefaultSampleRate   = 16000
	DefaultChannels     = 1
	DefaultFrameSamples = 1024
)

type Config struct {
	SampleRate   int
	Channels     int
	FrameSamples int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:   DefaultSampleRate,
		Channels:     DefaultChannels,
		FrameSamples: DefaultFrameSamples,
	}
}

// FrameBytes is the wire size of one frame (16-bit samples).
func (c Config) FrameBytes() int {
	return c.FrameSamples * c.Channels * 2
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 || c.Channels != 1 || c.FrameSamples <= 0 {
		return errors.New("audio config must be mono/16bit/valid rate")
	}
	return nil
}
