package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampOffset(t *testing.T) {
	tests := []struct {
		name     string
		offset   float64
		duration float64
		want     float64
	}{
		{"offset within duration", 10, 60, 10},
		{"offset past the end clamps to midpoint", 10, 6, 3},
		{"unknown duration forces zero", 10, 0, 0},
		{"negative duration forces zero", 10, -1, 0},
		{"offset exactly at the end", 20, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampOffset(tt.offset, tt.duration))
		})
	}
}
