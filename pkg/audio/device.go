package audio

// Device abstracts the host audio hardware so the call transport can run
// against fakes in tests and against portaudio in the real client.
type Device interface {
	OpenCapture(cfg Config) (Stream, error)
	OpenPlayback(cfg Config) (Stream, error)
	Close() error
}

// Stream moves exactly one frame per call. Read blocks until a full frame
// of microphone samples is available; Write blocks until the device has
// consumed the frame.
type Stream interface {
	Read(frame []byte) error
	Write(frame []byte) error
	Close() error
}
