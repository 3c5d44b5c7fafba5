package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Format is an image container format.
type Format string

// Supported formats
const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// DefaultJPEGQuality is used when a request doesn't specify a quality.
const DefaultJPEGQuality = 80

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatTIFF}
}

// ParseFormat normalizes a format name, accepting the common aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("%q: %w", name, ErrUnsupportedFormat)
	}
}

// ContentType returns the mime type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// Lossy reports whether encoding to the format discards pixel data. JPEG
// trades detail for size through its quality setting, GIF quantizes down
// to a 256 color palette.
func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatGIF
}

func (f Format) imagingFormat() (imaging.Format, error) {
	switch f {
	case FormatJPEG:
		return imaging.JPEG, nil
	case FormatPNG:
		return imaging.PNG, nil
	case FormatGIF:
		return imaging.GIF, nil
	case FormatBMP:
		return imaging.BMP, nil
	case FormatTIFF:
		return imaging.TIFF, nil
	default:
		return 0, fmt.Errorf("%q: %w", f, ErrUnsupportedFormat)
	}
}

// Encode serializes img to the given format. Quality applies to JPEG
// output only and must be within 1..100; zero selects the default. A
// quality supplied for any other format is accepted and ignored, since
// none of the others has a fidelity knob (GIF loses data through palette
// quantization regardless).
func (p *Pipeline) Encode(img *image.NRGBA, format Format, quality int) ([]byte, error) {
	imagingFormat, err := format.imagingFormat()
	if err != nil {
		return nil, err
	}

	var opts []imaging.EncodeOption
	if format == FormatJPEG {
		if quality == 0 {
			quality = DefaultJPEGQuality
		}

		if quality < 1 || quality > 100 {
			return nil, fmt.Errorf("%d: %w", quality, ErrQualityOutOfRange)
		}

		opts = append(opts, imaging.JPEGQuality(quality))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imagingFormat, opts...); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}

	return buf.Bytes(), nil
}
