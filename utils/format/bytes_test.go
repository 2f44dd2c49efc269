package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{"negative", -5, "0 B"},
		{"zero", 0, "0 B"},
		{"below threshold", 9_999, "9.76 KB"},
		{"bytes small", 512, "512 B"},
		{"kilobytes", 1024, "1.00 KB"},
		{"megabytes", 1048576, "1.00 MB"},
		{"gigabytes", 1073741824, "1.00 GB"},
		{"mixed", 1105197056, "1.03 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HumanReadableSize(tt.bytes))
		})
	}
}
