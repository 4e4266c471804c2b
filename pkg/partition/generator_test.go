package partition

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

func millis(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "0s", want: 0},
		{in: "30s", want: 30 * time.Second},
		{in: "90m", want: 90 * time.Minute},
		{in: "2h", want: 2 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: "-1d", wantErr: true},
		{in: "+1d", wantErr: true},
		{in: "1 d", wantErr: true},
		{in: " 1d", wantErr: true},
		{in: "1d2h", wantErr: true},
		{in: "1w", wantErr: true},
		{in: "d", wantErr: true},
		{in: "1.5h", wantErr: true},
		{in: "99999999999999999999d", wantErr: true},
		{in: "9999999999d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOffset(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveOffsets(t *testing.T) {
	logical := millis("2016-01-01T00:00:00Z")

	key, err := Derive(Spec{BasePath: "out", Offset: "1d"}, logical)
	require.NoError(t, err)
	assert.Equal(t, millis("2015-12-31T00:00:00Z"), key.Time)

	key, err = Derive(Spec{BasePath: "out", Offset: "90m"}, logical)
	require.NoError(t, err)
	assert.Equal(t, millis("2015-12-31T22:30:00Z"), key.Time)
}

func TestDerivePaths(t *testing.T) {
	adjusted := millis("2015-01-01T20:42:00Z")

	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{
			name: "formatted in UTC",
			spec: Spec{BasePath: "/data/orders", PathFormat: "yyyy-MM-dd/HH-mm", TimeZone: "UTC"},
			want: "/data/orders/2015-01-01/20-42",
		},
		{
			name: "format without zone defaults to UTC",
			spec: Spec{BasePath: "orders", PathFormat: "yyyy-MM-dd/HH-mm"},
			want: "orders/2015-01-01/20-42",
		},
		{
			name: "named zone",
			spec: Spec{BasePath: "orders", PathFormat: "yyyy-MM-dd/HH-mm", TimeZone: "America/Los_Angeles"},
			want: "orders/2015-01-01/12-42",
		},
		{
			name: "custom offset zone",
			spec: Spec{BasePath: "orders", PathFormat: "yyyy-MM-dd/HH-mm", TimeZone: "GMT+05:30"},
			want: "orders/2015-01-02/02-12",
		},
		{
			name: "unknown zone falls back to UTC",
			spec: Spec{BasePath: "orders", PathFormat: "yyyy-MM-dd/HH-mm", TimeZone: "Mars/Olympus"},
			want: "orders/2015-01-01/20-42",
		},
		{
			name: "blank zone falls back to UTC",
			spec: Spec{BasePath: "orders", PathFormat: "yyyy-MM-dd/HH-mm", TimeZone: "   "},
			want: "orders/2015-01-01/20-42",
		},
		{
			name: "epoch fallback",
			spec: Spec{BasePath: "orders/"},
			want: "orders/" + strconv.FormatInt(adjusted, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Derive(tt.spec, adjusted)
			require.NoError(t, err)
			assert.Equal(t, tt.want, key.FullPath)
			assert.Equal(t, adjusted, key.Time)
		})
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"minimal", Spec{BasePath: "out"}, false},
		{"full", Spec{BasePath: "out", PathFormat: "yyyy-MM-dd", TimeZone: "UTC", Offset: "1d"}, false},
		{"zone without format", Spec{BasePath: "out", TimeZone: "UTC"}, true},
		{"blank zone without format", Spec{BasePath: "out", TimeZone: "  "}, true},
		{"bad offset", Spec{BasePath: "out", Offset: "1 day"}, true},
		{"bad pattern", Spec{BasePath: "out", PathFormat: "yyyy-bb"}, true},
		{"missing base", Spec{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestDeriveRejectsZoneWithoutFormat(t *testing.T) {
	for _, tz := range []string{"UTC", "  "} {
		spec := Spec{BasePath: "out", TimeZone: tz}
		require.Error(t, spec.Validate())

		_, err := Derive(spec, 0)
		require.Error(t, err, "zone %q", tz)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	}

	key, err := Derive(Spec{BasePath: "out"}, 1420144920000)
	require.NoError(t, err)
	assert.Equal(t, "out/1420144920000", key.FullPath)
}

func TestComputeKeyConflict(t *testing.T) {
	ctx := context.Background()
	gen := NewGenerator(NewMemoryStore())
	spec := Spec{BasePath: "out", PathFormat: "yyyy-MM-dd/HH-mm", TimeZone: "UTC"}
	adjusted := millis("2015-01-01T20:42:00Z")

	first, err := gen.ComputeKey(ctx, spec, adjusted)
	require.NoError(t, err)
	assert.Equal(t, "out/2015-01-01/20-42", first.FullPath)

	_, err = gen.ComputeKey(ctx, spec, adjusted)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	// a different minute is a different partition
	_, err = gen.ComputeKey(ctx, spec, adjusted+time.Minute.Milliseconds())
	require.NoError(t, err)
}

func TestComputeKeyConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	gen := NewGenerator(store)
	spec := Spec{BasePath: "out"}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gen.ComputeKey(ctx, spec, 1000)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.IsType(err, errors.ErrorTypeConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 31, conflicts)
	assert.Len(t, store.Keys(), 1)
}

type failingStore struct{}

func (failingStore) Add(context.Context, Key) (bool, error) {
	return false, assert.AnError
}

func TestComputeKeyStoreFailure(t *testing.T) {
	_, err := NewGenerator(failingStore{}).ComputeKey(context.Background(), Spec{BasePath: "out"}, 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.ErrorIs(t, err, assert.AnError)
}
