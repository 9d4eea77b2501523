package vision

import (
	"image/color"
)

// ColorMode names the pixel layout of a decoded image.
type ColorMode string

const (
	ModeGray  ColorMode = "L"
	ModeRGB   ColorMode = "RGB"
	ModeOther ColorMode = "other"
)

// ImageInfo is the header-level description of an upload.
type ImageInfo struct {
	Format string
	Width  int
	Height int
	Mode   ColorMode
}

// Inspect reads only the image header.
func Inspect(data []byte) (ImageInfo, error) {
	cfg, format, err := decodeConfig(data)
	if err != nil {
		return ImageInfo{}, err
	}
	return ImageInfo{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Mode:   modeOf(cfg.ColorModel),
	}, nil
}

func modeOf(m color.Model) ColorMode {
	switch m {
	case color.GrayModel:
		return ModeGray
	case color.RGBAModel, color.RGBA64Model, color.YCbCrModel:
		return ModeRGB
	default:
		// palette, alpha, 16-bit gray and CMYK images.
		return ModeOther
	}
}

// Inspector flags uploads whose basic properties make a saturated model output
// untrustworthy.
type Inspector struct {
	minDimension int
}

func NewInspector(minDimension int) *Inspector {
	return &Inspector{minDimension: minDimension}
}

// Suspicious is true when the image is neither grayscale nor RGB, when either
// side is below the minimum dimension, or when the header cannot be read.
func (i *Inspector) Suspicious(data []byte) bool {
	info, err := Inspect(data)
	if err != nil {
		return true
	}
	if info.Mode == ModeOther {
		return true
	}
	return info.Width < i.minDimension || info.Height < i.minDimension
}
