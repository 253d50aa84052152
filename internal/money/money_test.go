package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.50", Format(150, 2))
	assert.Equal(t, "0.00000001", Format(1, 8))
	assert.Equal(t, "42", Format(42, 0))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     int64
		wantErr  error
	}{
		{"1.5", 2, 150, nil},
		{" 3 ", 0, 3, nil},
		{"0.00000001", 8, 1, nil},
		{"0", 2, 0, ErrNotPositive},
		{"-1", 2, 0, ErrNotPositive},
		{"1.234", 2, 0, ErrTooPrecise},
		{"100000000000000000000", 0, 0, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in, tt.decimals)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("abc", 2)
	assert.Error(t, err)
}
