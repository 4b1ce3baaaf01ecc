package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64ToInt(t *testing.T) {
	got, err := Uint64ToInt(123)
	require.NoError(t, err)
	assert.Equal(t, 123, got)

	_, err = Uint64ToInt(math.MaxUint64)
	assert.Error(t, err)
}

func TestInt64ToInt32(t *testing.T) {
	tests := []struct {
		in      int64
		want    int32
		wantErr bool
	}{
		{in: 0, want: 0},
		{in: -42, want: -42},
		{in: math.MaxInt32, want: math.MaxInt32},
		{in: math.MinInt32, want: math.MinInt32},
		{in: math.MaxInt32 + 1, wantErr: true},
		{in: math.MinInt32 - 1, wantErr: true},
	}
	for _, tt := range tests {
		got, err := Int64ToInt32(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFloat64ToInt32(t *testing.T) {
	got, err := Float64ToInt32(37)
	require.NoError(t, err)
	assert.Equal(t, int32(37), got)

	_, err = Float64ToInt32(3.5)
	assert.Error(t, err)

	_, err = Float64ToInt32(1e12)
	assert.Error(t, err)
}
