package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/anoixa/image-scraper/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_WebPBecomesJPEG(t *testing.T) {
	// 解码按魔数识别格式，PNG 字节标记为 image/webp 同样走转码分支
	src := testutil.NoisePNG(t, 1, 32, 32)

	out, err := Normalize(NewStdTranscoder(), src, "image/webp", DefaultQuality)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", out.Ext)
	assert.True(t, out.Converted)

	_, format, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestNormalize_PassThrough(t *testing.T) {
	data := []byte("not even an image")

	tests := map[string]string{
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/jpeg": ".jpg",
		"":           ".jpg",
	}
	for ct, ext := range tests {
		out, err := Normalize(NewStdTranscoder(), data, ct, DefaultQuality)
		require.NoError(t, err)
		assert.Equal(t, ext, out.Ext, ct)
		assert.False(t, out.Converted)
		assert.Equal(t, data, out.Data)
	}
}

func TestNormalize_UndecodableWebP(t *testing.T) {
	_, err := Normalize(NewStdTranscoder(), []byte("RIFF....WEBPgarbage"), "image/webp", DefaultQuality)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestStdTranscoder_FlattensTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	// 全透明像素应变为白色
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := NewStdTranscoder().ToJPEG(buf.Bytes(), 90)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(4, 4).RGBA()
	white := color.White
	wr, wg, wb, _ := white.RGBA()
	assert.InDelta(t, wr>>8, r>>8, 3)
	assert.InDelta(t, wg>>8, g>>8, 3)
	assert.InDelta(t, wb>>8, b>>8, 3)
}

func TestStdTranscoder_QualityOutOfRangeUsesDefault(t *testing.T) {
	src := testutil.NoisePNG(t, 2, 16, 16)
	out, err := NewStdTranscoder().ToJPEG(src, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, "std", NewStdTranscoder().Name())
}
