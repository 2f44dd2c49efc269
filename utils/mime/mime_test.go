package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtFromContentType(t *testing.T) {
	tests := map[string]string{
		"image/png":                ".png",
		"image/x-png":              ".png",
		"image/jpeg":               ".jpg",
		"IMAGE/JPEG; charset=utf8": ".jpg",
		"image/pjpeg":              ".jpg",
		"image/jpg":                ".jpg",
		"image/gif":                ".gif",
		"image/webp":               ".webp",
		"image/svg+xml":            ".jpg",
		"application/octet-stream": ".jpg",
		"":                         ".jpg",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtFromContentType(in), "content type %q", in)
	}
}

func TestIsWebP(t *testing.T) {
	assert.True(t, IsWebP("image/webp"))
	assert.True(t, IsWebP("Image/WebP"))
	assert.False(t, IsWebP("image/png"))
	assert.False(t, IsWebP(""))
}
