// Package json wraps goccy/go-json with pooled buffers for record output.
package json

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
)

// Marshal encodes v.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent encodes v with indentation.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// LineWriter writes one JSON document per line. Each line is encoded into a
// pooled buffer first so a failed encode never leaves a partial line behind.
type LineWriter struct {
	w     io.Writer
	lines int64
}

// NewLineWriter returns a LineWriter on w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Write encodes v as one line.
func (lw *LineWriter) Write(v interface{}) error {
	buf := pool.BufferPool.Get()
	defer pool.BufferPool.Put(buf)

	if err := gojson.NewEncoder(buf).Encode(v); err != nil {
		return err
	}
	if _, err := lw.w.Write(buf.Bytes()); err != nil {
		return err
	}
	lw.lines++
	return nil
}

// WriteRecord writes the record's data as one line.
func (lw *LineWriter) WriteRecord(r *pool.Record) error {
	return lw.Write(r.Data)
}

// Lines returns the number of lines written.
func (lw *LineWriter) Lines() int64 {
	return lw.lines
}

// MarshalLines encodes records as JSON lines.
func MarshalLines(records []*pool.Record) ([]byte, error) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf)
	for _, r := range records {
		if err := lw.WriteRecord(r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
