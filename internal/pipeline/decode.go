package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Decode turns raw bytes into a raster image. The format is sniffed from the
// magic bytes; if declared is non-empty and disagrees with the sniffed
// format, decoding fails rather than silently preferring either one. The
// dimensions from the image header are checked against the configured
// maximum before any pixel buffer is allocated.
func (p *Pipeline) Decode(data []byte, declared string) (*image.NRGBA, error) {
	cfg, detected, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}

		return nil, fmt.Errorf("reading image header: %w", ErrTruncated)
	}

	if declared != "" {
		declaredFormat, err := ParseFormat(declared)
		if err != nil {
			return nil, fmt.Errorf("declared format %q: %w", declared, ErrUnsupportedFormat)
		}

		if string(declaredFormat) != detected {
			return nil, fmt.Errorf("declared %q but detected %q: %w", declaredFormat, detected, ErrFormatMismatch)
		}
	}

	maxDim := p.maxDimension()
	if cfg.Width < 1 || cfg.Height < 1 || cfg.Width > maxDim || cfg.Height > maxDim {
		return nil, fmt.Errorf("%dx%d exceeds the %d pixel bound: %w", cfg.Width, cfg.Height, maxDim, ErrInvalidDimensions)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s data: %w", detected, ErrTruncated)
	}

	return imaging.Clone(img), nil
}
