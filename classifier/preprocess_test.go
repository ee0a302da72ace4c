package classifier

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreprocessNHWC(t *testing.T) {
	out, err := Preprocess(solid(40, 300, color.NRGBA{R: 255, G: 0, B: 51, A: 255}), NHWC)
	require.NoError(t, err)
	require.Len(t, out, 3*ImageSize*ImageSize)

	for _, i := range []int{0, ImageSize*ImageSize/2 + 7, ImageSize*ImageSize - 1} {
		assert.InDelta(t, 1.0, out[i*3], 1e-6)
		assert.InDelta(t, 0.0, out[i*3+1], 1e-6)
		assert.InDelta(t, 0.2, out[i*3+2], 1e-6)
	}
}

func TestPreprocessNCHW(t *testing.T) {
	out, err := Preprocess(solid(10, 10, color.NRGBA{R: 0, G: 255, B: 0, A: 255}), NCHW)
	require.NoError(t, err)
	plane := ImageSize * ImageSize
	require.Len(t, out, 3*plane)
	assert.InDelta(t, 0.0, out[5], 1e-6)
	assert.InDelta(t, 1.0, out[plane+5], 1e-6)
	assert.InDelta(t, 0.0, out[2*plane+5], 1e-6)
}

func TestPreprocessGrayscale(t *testing.T) {
	out, err := Preprocess(solid(20, 20, color.Gray{Y: 255}), NHWC)
	require.NoError(t, err)
	for _, v := range out[:3] {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestPreprocessRange(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 31)
	}
	out, err := Preprocess(img, NHWC)
	require.NoError(t, err)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPreprocessEmptyImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, &gif.GIF{
		Image: []*image.Paletted{image.NewPaletted(image.Rect(0, 0, 0, 0), color.Palette{color.Black})},
		Delay: []int{0},
	}))
	img, _, err := image.Decode(&buf)
	require.NoError(t, err)
	require.True(t, img.Bounds().Empty())

	out, err := Preprocess(img, NHWC)
	assert.ErrorIs(t, err, ErrEmptyImage)
	assert.Nil(t, out)

	_, err = Preprocess(nil, NCHW)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestArgMax(t *testing.T) {
	assert.Equal(t, -1, ArgMax(nil))
	assert.Equal(t, 0, ArgMax([]float32{0.5}))
	assert.Equal(t, 2, ArgMax([]float32{0.1, 0.2, 0.6, 0.1}))
	// ties resolve to the first index
	assert.Equal(t, 1, ArgMax([]float32{0.1, 0.4, 0.4, 0.1}))
}
