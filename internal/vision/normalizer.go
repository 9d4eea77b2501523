package vision

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// Channels is the color depth of every Tensor.
const Channels = 3

// Tensor is a normalized image in height x width x channel order with values
// in [0, 1].
type Tensor struct {
	Height int
	Width  int
	Data   []float32
}

// At returns the value of channel c at pixel (x, y).
func (t *Tensor) At(x, y, c int) float32 {
	return t.Data[(y*t.Width+x)*Channels+c]
}

// Normalizer turns encoded image bytes into the square tensor the model expects.
type Normalizer struct {
	size      int
	maxPixels int64
}

type NormalizerOption func(*Normalizer)

// WithMaxPixels bounds the decoded raster. Uploads declaring more pixels are
// rejected with ErrDecode before any pixel data is read.
func WithMaxPixels(n int64) NormalizerOption {
	return func(nz *Normalizer) { nz.maxPixels = n }
}

func NewNormalizer(size int, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{size: size, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) Size() int {
	return n.size
}

// Normalize decodes data, resizes it with a Catmull-Rom filter, drops any alpha
// channel and scales each 8-bit sample by 1/255.
func (n *Normalizer) Normalize(data []byte) (*Tensor, error) {
	img, _, err := decodeImage(data, n.maxPixels)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrDecode)
	}

	// imaging always returns non-premultiplied RGBA, so reading R, G, B directly
	// matches a plain RGB conversion without compositing against a background.
	resized := imaging.Resize(img, n.size, n.size, imaging.CatmullRom)

	out := &Tensor{
		Height: n.size,
		Width:  n.size,
		Data:   make([]float32, n.size*n.size*Channels),
	}
	for y := 0; y < n.size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < n.size; x++ {
			src := row[x*4:]
			dst := out.Data[(y*n.size+x)*Channels:]
			dst[0] = float32(src[0]) / 255.0
			dst[1] = float32(src[1]) / 255.0
			dst[2] = float32(src[2]) / 255.0
		}
	}
	return out, nil
}
