package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// Checksum 计算 SHA-256 十六进制摘要
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RandomBytes 生成 n 字节随机数据，seed 相同时内容相同
func RandomBytes(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(r.UintN(256))
	}
	return buf
}

// NoisePNG 生成可解码的随机噪点 PNG，噪点保证压缩后仍大于 10KB
func NoisePNG(t *testing.T, seed uint64, w, h int) []byte {
	t.Helper()

	r := rand.New(rand.NewPCG(seed, seed+1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8(r.UintN(256)),
				G: uint8(r.UintN(256)),
				B: uint8(r.UintN(256)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
