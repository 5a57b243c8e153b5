package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeref(t *testing.T) {
	t.Run("nil の場合はゼロ値を返す", func(t *testing.T) {
		assert.Equal(t, int64(0), Deref[int64](nil))
		assert.Equal(t, "", Deref[string](nil))
	})

	t.Run("値がある場合はその値を返す", func(t *testing.T) {
		var val int64 = 999
		assert.Equal(t, int64(999), Deref(&val))
	})
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "****"},
		{"AQVN1234567890abcd", "****abcd"},
		{"  b1g2h3j4k5  ", "****j4k5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskSecret(tt.in), "input %q", tt.in)
	}
}
