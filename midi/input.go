package midi

import (
	"fmt"
	"log/slog"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	// registers the rtmidi driver
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// InPorts returns the names of the available MIDI input ports.
func InPorts() []string {
	var names []string
	for _, in := range gomidi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

func findInPort(name string) (drivers.In, error) {
	for _, in := range gomidi.GetInPorts() {
		if in.String() == name {
			return in, nil
		}
	}
	return nil, fmt.Errorf("midi input %q not found", name)
}

// Listen opens the named input port and passes every note message it
// receives to submit. submit is called on the driver's goroutine.
func Listen(port string, submit func(Event), logger *slog.Logger) (stop func(), err error) {
	in, err := findInPort(port)
	if err != nil {
		return nil, err
	}
	stop, err = gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		ev, ok := FromMessage(msg)
		if !ok {
			logger.Debug("ignoring midi message", "port", port, "msg", msg.String())
			return
		}
		ev.Live = true
		submit(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("listen to %q: %w", port, err)
	}
	logger.Info("listening for midi input", "port", port)
	return stop, nil
}

// Close releases the MIDI driver.
func Close() {
	gomidi.CloseDriver()
}
