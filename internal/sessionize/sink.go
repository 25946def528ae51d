package sessionize

import "github.com/edgar-sessions/sessionize/internal/session"

type multiSink []Sink

// MultiSink fans each batch out to every sink in order, stopping at the
// first error.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Emit(closed []*session.Session) error {
	for _, s := range m {
		if err := s.Emit(closed); err != nil {
			return err
		}
	}
	return nil
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(closed []*session.Session) error

func (f SinkFunc) Emit(closed []*session.Session) error {
	return f(closed)
}
