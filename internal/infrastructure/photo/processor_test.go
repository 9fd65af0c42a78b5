package photo

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDataURL(t *testing.T, s string) image.Image {
	t.Helper()
	require.True(t, IsDataURL(s))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, dataURLPrefix))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestProcess_DownscalesLandscape(t *testing.T) {
	out, err := NewProcessor(1).Process(bytes.NewReader(pngBytes(t, 1200, 800)))
	require.NoError(t, err)

	b := decodeDataURL(t, out).Bounds()
	assert.Equal(t, 600, b.Dx())
	assert.Equal(t, 400, b.Dy())
}

func TestProcess_DownscalesPortrait(t *testing.T) {
	out, err := NewProcessor(1).Process(bytes.NewReader(pngBytes(t, 300, 900)))
	require.NoError(t, err)

	b := decodeDataURL(t, out).Bounds()
	assert.Equal(t, 200, b.Dx())
	assert.Equal(t, 600, b.Dy())
}

func TestProcess_KeepsSmallImage(t *testing.T) {
	out, err := NewProcessor(1).Process(bytes.NewReader(pngBytes(t, 120, 80)))
	require.NoError(t, err)

	b := decodeDataURL(t, out).Bounds()
	assert.Equal(t, 120, b.Dx())
	assert.Equal(t, 80, b.Dy())
}

func TestProcess_Rejects(t *testing.T) {
	p := NewProcessor(1)

	_, err := p.Process(strings.NewReader("%PDF-1.4 not an image"))
	assert.True(t, apperror.IsValidation(err))

	_, err = p.Process(bytes.NewReader(nil))
	assert.True(t, apperror.IsValidation(err))

	big := make([]byte, 1024*1024+10)
	copy(big, pngBytes(t, 10, 10))
	_, err = p.Process(bytes.NewReader(big))
	assert.True(t, apperror.IsValidation(err))
}

// hugeCanvasPNG - маленький PNG, в заголовке которого записан огромный холст.
func hugeCanvasPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	raw := pngBytes(t, 8, 8)
	// Сигнатура 8 байт, длина чанка 4, "IHDR" 4, затем ширина и высота.
	binary.BigEndian.PutUint32(raw[16:20], w)
	binary.BigEndian.PutUint32(raw[20:24], h)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))
	return raw
}

func TestProcess_RejectsHugeCanvas(t *testing.T) {
	raw := hugeCanvasPNG(t, 8000, 8000)
	require.Less(t, len(raw), 1024)

	_, err := NewProcessor(2).Process(bytes.NewReader(raw))
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestProcessDataURL(t *testing.T) {
	p := NewProcessor(1)

	img := image.NewRGBA(image.Rect(0, 0, 1500, 1000))
	var src bytes.Buffer
	require.NoError(t, jpeg.Encode(&src, img, &jpeg.Options{Quality: 90}))

	out, err := p.ProcessDataURL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(src.Bytes()))
	require.NoError(t, err)
	b := decodeDataURL(t, out).Bounds()
	assert.Equal(t, 600, b.Dx())
	assert.Equal(t, 400, b.Dy())

	out, err = p.ProcessDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 40, 30)))
	require.NoError(t, err)
	assert.Equal(t, 40, decodeDataURL(t, out).Bounds().Dx())

	tests := []struct {
		name  string
		input string
	}{
		{"not an image", "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("not-an-image"))},
		{"broken base64", "data:image/jpeg;base64,@@@"},
		{"plain url", "http://example.com/x.jpg"},
		{"not base64 encoded", "data:image/png,abc"},
		{"over limit", "data:image/jpeg;base64," + strings.Repeat("A", 2*1024*1024)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ProcessDataURL(tt.input)
			assert.True(t, apperror.IsValidation(err))
		})
	}
}
