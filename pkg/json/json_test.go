package json

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
)

func TestLineWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf)

	require.NoError(t, lw.Write(map[string]interface{}{"id": 1, "name": "ada"}))
	require.NoError(t, lw.Write(map[string]interface{}{"id": 2, "name": nil}))
	assert.Equal(t, int64(2), lw.Lines())
	assert.Equal(t, "{\"id\":1,\"name\":\"ada\"}\n{\"id\":2,\"name\":null}\n", buf.String())
}

func TestLineWriterSkipsFailedLine(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf)

	err := lw.Write(map[string]interface{}{"bad": make(chan int)})
	require.Error(t, err)
	assert.Zero(t, buf.Len())
	assert.Zero(t, lw.Lines())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestLineWriterPropagatesWriteError(t *testing.T) {
	lw := NewLineWriter(failingWriter{})
	assert.EqualError(t, lw.Write(1), "closed")
}

func TestMarshalLines(t *testing.T) {
	r1 := pool.NewRecord("orders", 0)
	r1.SetData("id", int64(1))
	r2 := pool.NewRecord("orders", 1)
	r2.SetData("id", int64(2))
	defer r1.Release()
	defer r2.Release()

	out, err := MarshalLines([]*pool.Record{r1, r2})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)

	var got map[string]interface{}
	require.NoError(t, Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, float64(2), got["id"])
}
