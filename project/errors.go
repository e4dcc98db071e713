package project

import "fmt"

// ErrorKind classifies configuration errors found while loading a project.
type ErrorKind int

const (
	InvalidClockConfig ErrorKind = iota
	DuplicateID
	DanglingReference
	CyclicRouting
	MalformedPattern
	MalformedPath
	InvalidDevice
	InvalidCable
	InvalidTrack
	InvalidTrip
)

var kindNames = [...]string{
	"invalid clock config",
	"duplicate id",
	"dangling reference",
	"cyclic routing",
	"malformed pattern",
	"malformed path",
	"invalid device",
	"invalid patch cable",
	"invalid track",
	"invalid trip",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return kindNames[k]
}

// LoadError reports the entity that made a project fail to load.
type LoadError struct {
	Kind   ErrorKind
	Entity string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Entity, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadError(kind ErrorKind, entity string, format string, args ...interface{}) *LoadError {
	return &LoadError{Kind: kind, Entity: entity, Err: fmt.Errorf(format, args...)}
}
