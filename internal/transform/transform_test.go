package transform

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

func sourceImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTransformFitsWithinBoundingBox(t *testing.T) {
	t.Parallel()

	src := sourceImage(t, 2400, 1600)

	out, err := Transform(src, Gallery)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.ContentType)
	assert.LessOrEqual(t, out.Width, Gallery.MaxSize)
	assert.LessOrEqual(t, out.Height, Gallery.MaxSize)
	// Aspect ratio is preserved by Fit.
	assert.Equal(t, 1200, out.Width)
	assert.Equal(t, 800, out.Height)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Bytes))
	require.NoError(t, err)
	assert.Equal(t, out.Width, decoded.Bounds().Dx())
}

func TestTransformNeverUpscales(t *testing.T) {
	t.Parallel()

	src := sourceImage(t, 200, 150)

	out, err := Transform(src, Hero)
	require.NoError(t, err)
	assert.Equal(t, 200, out.Width)
	assert.Equal(t, 150, out.Height)
}

func TestTransformDecodeError(t *testing.T) {
	t.Parallel()

	_, err := Transform([]byte("definitely not an image"), Thumbnail)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDecode, typed.Code())
}

func TestVariantsShareOneDecode(t *testing.T) {
	t.Parallel()

	src := sourceImage(t, 2000, 2000)

	outputs, err := Variants(src, Thumbnail, Gallery, Hero)
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	assert.Equal(t, 300, outputs[0].Width)
	assert.Equal(t, 1200, outputs[1].Width)
	assert.Equal(t, 1920, outputs[2].Width)
}

func TestEncodeRejectsZeroSizeProfile(t *testing.T) {
	t.Parallel()

	_, err := Transform(sourceImage(t, 10, 10), Profile{Name: "broken"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
