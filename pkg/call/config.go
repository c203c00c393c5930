package call

import (
	"time"

	"github.com/retrochat/retrovoice/pkg/audio"
)

type Config struct {
	// RelayAddr is the host:port of the relay's media endpoint.
	RelayAddr string

	Audio audio.Config

	// CallTimeout bounds how long an outbound attempt may stay unanswered.
	CallTimeout time.Duration

	// HandshakeTimeout bounds the wait for the relay's join/no-join byte.
	HandshakeTimeout time.Duration

	// ReadTimeout bounds a single receive attempt of the playback loop.
	ReadTimeout time.Duration

	DialTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Audio:            audio.DefaultConfig(),
		CallTimeout:      20 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      time.Second,
		DialTimeout:      10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Audio.SampleRate <= 0 {
		c.Audio = def.Audio
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	return c
}
