package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"id":1,"name":"widget"}`+"\n", 500))

	for _, a := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate} {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(a), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(&buf, a, level)
				require.NoError(t, err)
				_, err = w.Write(payload)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				if a != None {
					assert.Less(t, buf.Len(), len(payload))
				}

				r, err := NewReader(&buf, a)
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, payload, got)
			})
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantExt string
		wantErr bool
	}{
		{"", None, "", false},
		{"GZIP", Gzip, ".gz", false},
		{" zstd ", Zstd, ".zst", false},
		{"lz4", LZ4, ".lz4", false},
		{"brotli", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantExt, got.Extension())
		})
	}
}

func TestUnsupported(t *testing.T) {
	_, err := NewWriter(io.Discard, Algorithm("rar"), Default)
	assert.Error(t, err)
	_, err = NewReader(strings.NewReader(""), Algorithm("rar"))
	assert.Error(t, err)
}
