package engine

import "fmt"

type Config struct {
	SampleRate int
	// BufferSize is the number of frames rendered per pass. Larger requests
	// are split into passes of this size.
	BufferSize       int
	LiveQueueSize    int
	CommandQueueSize int
	// Dir resolves relative file names in the project.
	Dir string
}

func (c Config) validate() error {
	if c.SampleRate <= 0 || c.BufferSize <= 0 || c.LiveQueueSize <= 0 || c.CommandQueueSize <= 0 {
		return fmt.Errorf("bad engine config: %+v", c)
	}
	return nil
}
