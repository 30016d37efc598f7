package session

import (
	"fmt"
	"strings"
)

// LoadError reports a malformed or unreadable session container.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load session %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UnknownStreamError is returned when a stream name is absent from a set.
type UnknownStreamError struct {
	Name      string
	Available []string
}

func (e *UnknownStreamError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown stream %q: session has no streams", e.Name)
	}
	return fmt.Sprintf("unknown stream %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}
