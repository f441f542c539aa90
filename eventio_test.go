package cres

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceSource(t *testing.T) {
	events := []Event{{Weight: 1}, {Weight: -2}}
	src := NewSliceSource(events)
	got, err := ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, events, got)

	got[0].Weight = 5
	assert.Equal(t, 1.0, events[0].Weight, "source hands out copies")

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestJSONL_RoundTrip(t *testing.T) {
	events := generateEvents(20, 1)
	events[3].Meta = EventMeta{ProcessID: 7, Scale: 91.2, PDF: PDFInfo{ID1: 21, X1: 0.01}}

	var buf bytes.Buffer
	sink := NewJSONLSink(&buf)
	for i := range events {
		require.NoError(t, sink.WriteEvent(&events[i]))
	}
	require.NoError(t, sink.Flush())
	assert.Equal(t, len(events), strings.Count(buf.String(), "\n"))
	assert.Equal(t, len(events), strings.Count(buf.String(), `"meta":{`), "meta is always written")

	got, err := ReadAll(NewJSONLSource(&buf))
	require.NoError(t, err)
	require.Len(t, got, len(events))
	for i := range events {
		assert.Equal(t, events[i].Weight, got[i].Weight)
		assert.Equal(t, events[i].SecondaryWeight, got[i].SecondaryWeight)
		assert.Equal(t, events[i].Particles, got[i].Particles)
	}
	assert.Equal(t, events[3].Meta, got[3].Meta)
}

func TestJSONLSource_Malformed(t *testing.T) {
	src := NewJSONLSource(strings.NewReader(`{"weight": 1}` + "\n" + `{"weight": oops}` + "\n"))
	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Weight)

	_, err = src.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 1")
}

func TestRun_JSONL(t *testing.T) {
	events := generateEvents(300, 15)
	sum, abs, _ := weightSums(events)

	var in bytes.Buffer
	sink := NewJSONLSink(&in)
	for i := range events {
		require.NoError(t, sink.WriteEvent(&events[i]))
	}
	require.NoError(t, sink.Flush())

	var out bytes.Buffer
	eng, err := NewEngine(testOptions())
	require.NoError(t, err)
	report, err := eng.Run(context.Background(), NewJSONLSource(&in), NewJSONLSink(&out))
	require.NoError(t, err)
	assert.Equal(t, 300, report.Events)

	got, err := ReadAll(NewJSONLSource(&out))
	require.NoError(t, err)
	require.Len(t, got, len(events))
	for i := range got {
		assert.Equal(t, i, got[i].ID, "output keeps input order")
		assert.Equal(t, events[i].Particles, got[i].Particles)
	}
	after, _, _ := weightSums(got)
	assert.InDelta(t, sum, after, 1e-9*abs)
}

type failingSink struct{ SliceSink }

func (s *failingSink) Flush() error { return errors.New("disk full") }

func TestRun_SinkError(t *testing.T) {
	eng, err := NewEngine(testOptions())
	require.NoError(t, err)
	_, err = eng.Run(context.Background(), NewSliceSource(generateEvents(10, 1)), &failingSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, err, eng.LastError())
}

func TestRun_SourceError(t *testing.T) {
	eng, err := NewEngine(testOptions())
	require.NoError(t, err)
	sink := &SliceSink{}
	_, err = eng.Run(context.Background(), NewJSONLSource(strings.NewReader("not json")), sink)
	require.Error(t, err)
	assert.Empty(t, sink.Events)
}
