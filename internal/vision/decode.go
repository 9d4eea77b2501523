package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrDecode marks bytes that could not be read as a supported image.
var ErrDecode = errors.New("cannot decode image")

// DefaultMaxPixels matches the decompression-bomb limit of common imaging
// toolkits.
const DefaultMaxPixels int64 = 178_956_970

// decodeImage reads the header first and refuses to allocate a raster larger
// than maxPixels. A non-positive maxPixels disables the check.
func decodeImage(data []byte, maxPixels int64) (image.Image, string, error) {
	cfg, _, err := decodeConfig(data)
	if err != nil {
		return nil, "", err
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("%w: image too large (%dx%d exceeds %d pixels)",
			ErrDecode, cfg.Width, cfg.Height, maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

func decodeConfig(data []byte) (image.Config, string, error) {
	if len(data) == 0 {
		return image.Config{}, "", fmt.Errorf("%w: empty input", ErrDecode)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg, format, nil
}
