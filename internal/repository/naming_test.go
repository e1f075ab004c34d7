package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextName(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"empty", nil, "disk0"},
		{"first", []string{"disk0"}, "disk1"},
		{"sequential", []string{"disk0", "disk1", "disk2"}, "disk3"},
		{"lexicographic max", []string{"disk10", "disk2"}, "disk3"},
		{"collision skipped", []string{"disk9", "disk10"}, "disk11"},
		{"other prefixes ignored", []string{"root", "disk4"}, "disk5"},
		{"only other prefixes", []string{"root"}, "disk0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextName("disk", tt.keys)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextName_NonNumericSuffix(t *testing.T) {
	_, err := NextName("nic", []string{"nic0", "nicwan"})
	assert.ErrorIs(t, err, ErrInvalidEntity)
}
