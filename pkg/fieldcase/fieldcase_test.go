package fieldcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Case
		wantErr bool
	}{
		{"", None, false},
		{"NONE", None, false},
		{"no change", None, false},
		{"upper", Upper, false},
		{" Lower ", Lower, false},
		{"camel", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	record := map[string]interface{}{"Id": 1, "customer_Name": "ada"}

	upper, err := Normalize(record, Upper)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ID": 1, "CUSTOMER_NAME": "ada"}, upper)

	lower, err := Normalize(record, Lower)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"id": 1, "customer_name": "ada"}, lower)

	same, err := Normalize(record, None)
	require.NoError(t, err)
	assert.Equal(t, record, same)

	// input untouched
	assert.Contains(t, record, "Id")
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize(map[string]interface{}{"a": 1}, Case("title"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))

	_, err = Normalize(map[string]interface{}{"id": 1, "ID": 2}, Lower)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestNames(t *testing.T) {
	got, err := Names([]string{"Id", "Total"}, Upper)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "TOTAL"}, got)

	_, err = Names([]string{"id", "Id"}, Upper)
	assert.Error(t, err)
}
