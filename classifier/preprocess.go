package classifier

import (
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// ImageSize is the fixed square input edge of the model.
const ImageSize = 150

var ErrEmptyImage = errors.New("image has no pixels")

type Layout int

const (
	NHWC Layout = iota
	NCHW
)

// Preprocess stretches img to ImageSize x ImageSize (aspect ratio is not kept),
// drops alpha and scales every channel from [0,255] to [0,1].
func Preprocess(img image.Image, layout Layout) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	resized := imaging.Resize(img, ImageSize, ImageSize, imaging.CatmullRom)

	const plane = ImageSize * ImageSize
	out := make([]float32, 3*plane)
	for y := range ImageSize {
		for x := range ImageSize {
			off := resized.PixOffset(x, y)
			px := resized.Pix[off : off+3 : off+3]
			i := y*ImageSize + x
			for c := range 3 {
				v := float32(px[c]) / 255.0
				if layout == NCHW {
					out[c*plane+i] = v
				} else {
					out[i*3+c] = v
				}
			}
		}
	}
	return out, nil
}

// ArgMax returns the index of the largest value; ties go to the lowest index.
func ArgMax(v []float32) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
