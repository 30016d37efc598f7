package session

import (
	"fmt"
	"sort"
)

// StreamSet is the read-only view of a loaded session.
type StreamSet interface {
	// Stream returns the named stream or an *UnknownStreamError.
	Stream(name string) (Stream, error)
	// Names lists the streams in load order.
	Names() []string
	// Source identifies where the session was loaded from.
	Source() string
}

// Set is the in-memory StreamSet returned by loaders.
type Set struct {
	source  string
	order   []string
	streams map[string]Stream
}

// NewSet validates the given streams and indexes them by name. Duplicate
// names are rejected.
func NewSet(source string, streams ...Stream) (*Set, error) {
	s := &Set{
		source:  source,
		streams: make(map[string]Stream, len(streams)),
	}
	for _, st := range streams {
		if _, dup := s.streams[st.Name]; dup {
			return nil, fmt.Errorf("duplicate stream name %q", st.Name)
		}
		if err := st.Validate(); err != nil {
			return nil, err
		}
		s.streams[st.Name] = st
		s.order = append(s.order, st.Name)
	}
	return s, nil
}

// Stream implements StreamSet.
func (s *Set) Stream(name string) (Stream, error) {
	st, ok := s.streams[name]
	if !ok {
		avail := append([]string(nil), s.order...)
		sort.Strings(avail)
		return Stream{}, &UnknownStreamError{Name: name, Available: avail}
	}
	return st, nil
}

// Names implements StreamSet.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Source implements StreamSet.
func (s *Set) Source() string {
	return s.source
}
