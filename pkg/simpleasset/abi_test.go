package simpleasset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckABI(t *testing.T) {
	tests := []struct {
		abi string
		ok  bool
	}{
		{"1.0.0", true},
		{"1.0.7", true},
		{"v1.0.0", true},
		{"1.1.0", false},
		{"2.0.0", false},
		{"0.9.0", false},
		{"not-a-version", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.abi, func(t *testing.T) {
			err := CheckABI(tt.abi)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
