// Package strobe toggles a GPIO line on correlator events so dump timing
// can be checked with a scope or frequency counter.
package strobe

import (
	"fmt"
	"sync"

	"gps-correlator/internal/engine"
)

type Line interface {
	SetValue(v int) error
	Close() error
}

type Event int

const (
	// OnDump toggles on reports carrying new dump data.
	OnDump Event = iota
	// OnReport toggles on every report.
	OnReport
)

func ParseEvent(s string) (Event, error) {
	switch s {
	case "", "dump":
		return OnDump, nil
	case "report":
		return OnReport, nil
	}
	return 0, fmt.Errorf("unknown strobe event %q", s)
}

type Strobe struct {
	mu    sync.Mutex
	line  Line
	event Event
	level int
}

// Open requests pin as an output driven low.
func Open(pin int, event Event) (*Strobe, error) {
	line, err := openGPIOFn(pin)
	if err != nil {
		return nil, err
	}
	return New(line, event), nil
}

func New(line Line, event Event) *Strobe {
	return &Strobe{line: line, event: event}
}

func (s *Strobe) Publish(r engine.Report) error {
	if s.event == OnDump && !r.NewData {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level ^= 1
	return s.line.SetValue(s.level)
}

func (s *Strobe) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *Strobe) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.line == nil {
		return nil
	}
	err := s.line.Close()
	s.line = nil
	return err
}
