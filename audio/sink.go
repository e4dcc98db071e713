package audio

import (
	"github.com/gordonklaus/portaudio"
)

// Source fills an interleaved stereo buffer.
type Source interface {
	Render(out []float32)
}

// Sink plays a Source on the default output device.
type Sink struct {
	source Source
	stream *portaudio.Stream
}

func NewSink(source Source, sampleRate, bufferSize int) (*Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	s := &Sink{source: source}
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), bufferSize, s.process)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	s.stream = stream
	return s, nil
}

func (s *Sink) Start() error {
	return s.stream.Start()
}

func (s *Sink) Stop() error {
	err := s.stream.Stop()
	s.stream.Close()
	portaudio.Terminate()
	return err
}

func (s *Sink) process(out []float32) {
	s.source.Render(out)
}
