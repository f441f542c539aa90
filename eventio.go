package cres

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// EventSource yields events one at a time and returns io.EOF after the last.
type EventSource interface {
	Next() (*Event, error)
}

// EventSink receives resampled events in input order.
type EventSink interface {
	WriteEvent(*Event) error
	Flush() error
}

// SliceSource reads events from memory.
type SliceSource struct {
	events []Event
	pos    int
}

// NewSliceSource returns a source over events. The events are copied as
// they are read.
func NewSliceSource(events []Event) *SliceSource {
	return &SliceSource{events: events}
}

func (s *SliceSource) Next() (*Event, error) {
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return &ev, nil
}

// SliceSink collects events in memory.
type SliceSink struct {
	Events []Event
}

func (s *SliceSink) WriteEvent(ev *Event) error {
	s.Events = append(s.Events, *ev)
	return nil
}

func (s *SliceSink) Flush() error { return nil }

// JSONLSource decodes one JSON-encoded Event per line.
type JSONLSource struct {
	dec  *json.Decoder
	line int
}

// NewJSONLSource returns a source reading from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	return &JSONLSource{dec: json.NewDecoder(bufio.NewReader(r))}
}

func (s *JSONLSource) Next() (*Event, error) {
	var ev Event
	if err := s.dec.Decode(&ev); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("cres: decoding event %d: %w", s.line, err)
	}
	s.line++
	return &ev, nil
}

// JSONLSink encodes one Event per line.
type JSONLSink struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLSink returns a sink writing to w. Call Flush when done.
func NewJSONLSink(w io.Writer) *JSONLSink {
	bw := bufio.NewWriter(w)
	return &JSONLSink{w: bw, enc: json.NewEncoder(bw)}
}

func (s *JSONLSink) WriteEvent(ev *Event) error {
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("cres: encoding event %d: %w", ev.ID, err)
	}
	return nil
}

func (s *JSONLSink) Flush() error { return s.w.Flush() }

// ReadAll drains src.
func ReadAll(src EventSource) ([]Event, error) {
	var events []Event
	for {
		ev, err := src.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, *ev)
	}
}
