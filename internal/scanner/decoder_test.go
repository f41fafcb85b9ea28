package scanner

import (
	"image"
	"image/color"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrixToImage(t *testing.T, m *gozxing.BitMatrix) image.Image {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, m.GetWidth(), m.GetHeight()))
	for y := 0; y < m.GetHeight(); y++ {
		for x := 0; x < m.GetWidth(); x++ {
			if m.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestDecodeEAN13RoundTrip(t *testing.T) {
	const symbol = "4006381333931"

	matrix, err := oned.NewEAN13Writer().Encode(symbol, gozxing.BarcodeFormat_EAN_13, 240, 80, nil)
	require.NoError(t, err)

	decode := NewOneDDecoder([]string{"ean_13"})
	got, ok := decode(matrixToImage(t, matrix))
	require.True(t, ok)
	assert.Equal(t, symbol, got)
}

func TestDecodeCode128RoundTrip(t *testing.T) {
	const symbol = "AVRYX-001"

	matrix, err := oned.NewCode128Writer().Encode(symbol, gozxing.BarcodeFormat_CODE_128, 300, 80, nil)
	require.NoError(t, err)

	decode := NewOneDDecoder(nil) // full default format set
	got, ok := decode(matrixToImage(t, matrix))
	require.True(t, ok)
	assert.Equal(t, symbol, got)
}

func TestDecodeBlankFrame(t *testing.T) {
	decode := NewOneDDecoder(nil)

	blank := image.NewGray(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			blank.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	_, ok := decode(blank)
	assert.False(t, ok)
}

func TestUnknownFormatNamesFallBack(t *testing.T) {
	decode := NewOneDDecoder([]string{"qr", "datamatrix"})
	require.NotNil(t, decode)

	matrix, err := oned.NewEAN13Writer().Encode("4006381333931", gozxing.BarcodeFormat_EAN_13, 240, 80, nil)
	require.NoError(t, err)

	got, ok := decode(matrixToImage(t, matrix))
	require.True(t, ok)
	assert.Equal(t, "4006381333931", got)
}
