package frame

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	raw := pngBytes(t, 6, 4)
	encoded := base64.StdEncoding.EncodeToString(raw)

	for _, in := range []string{
		"data:image/png;base64," + encoded,
		encoded,
		base64.RawStdEncoding.EncodeToString(raw),
	} {
		img, err := DecodeDataURL(in)
		require.NoError(t, err)
		require.Equal(t, 6, img.Bounds().Dx())
		require.Equal(t, 4, img.Bounds().Dy())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []string{
		"",
		"data:image/png;base64",
		"data:image/png,rawtext",
		"data:image/png;base64,!!!",
		base64.StdEncoding.EncodeToString([]byte("not an image")),
	}
	for _, in := range tests {
		_, err := DecodeDataURL(in)
		require.ErrorIs(t, err, ErrUndecodable, in)
	}
}

func TestDecodeRawBytes(t *testing.T) {
	img, err := Decode(pngBytes(t, 3, 3))
	require.NoError(t, err)
	require.Equal(t, 3, img.Bounds().Dx())

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrUndecodable)
}

// bmpHeader baut einen 24-Bit-BMP-Header ohne Pixeldaten
func bmpHeader(w, h int32) []byte {
	b := make([]byte, 54)
	copy(b, "BM")
	binary.LittleEndian.PutUint32(b[2:], 54)
	binary.LittleEndian.PutUint32(b[10:], 54) // Offset der Pixeldaten
	binary.LittleEndian.PutUint32(b[14:], 40) // BITMAPINFOHEADER
	binary.LittleEndian.PutUint32(b[18:], uint32(w))
	binary.LittleEndian.PutUint32(b[22:], uint32(h))
	binary.LittleEndian.PutUint16(b[26:], 1)  // Ebenen
	binary.LittleEndian.PutUint16(b[28:], 24) // Bits pro Pixel
	return b
}

func TestDecodeRejectsOversizedDimensions(t *testing.T) {
	data := bmpHeader(48000, 48000)
	require.Less(t, len(data), 128)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "bmp", format)
	require.Equal(t, 48000, cfg.Width)

	_, err = Decode(data)
	require.ErrorIs(t, err, ErrUndecodable)
	require.Contains(t, err.Error(), "exceeds")

	_, err = DecodeDataURL("data:image/bmp;base64," + base64.StdEncoding.EncodeToString(data))
	require.ErrorIs(t, err, ErrUndecodable)
}

func TestSetMaxPixels(t *testing.T) {
	t.Cleanup(func() { SetMaxPixels(DefaultMaxPixels) })

	SetMaxPixels(20)
	require.EqualValues(t, 20, MaxPixels())

	_, err := Decode(pngBytes(t, 4, 5))
	require.NoError(t, err)
	_, err = Decode(pngBytes(t, 5, 5))
	require.ErrorIs(t, err, ErrUndecodable)

	SetMaxPixels(0)
	require.Equal(t, DefaultMaxPixels, MaxPixels())
}
