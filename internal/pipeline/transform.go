package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Apply runs a single operation on img and returns a new image. Operations
// never mutate their input, so independent jobs can run in parallel without
// aliasing pixel buffers.
func (p *Pipeline) Apply(img *image.NRGBA, op Operation) (*image.NRGBA, error) {
	var out *image.NRGBA
	var err error

	switch op := op.(type) {
	case Resize:
		out, err = p.resize(img, op)
	case Crop:
		out, err = p.crop(img, op)
	case Rotate:
		out, err = p.rotate(img, op)
	case OverlayText:
		out, err = p.overlayText(img, op)
	default:
		return nil, fmt.Errorf("unknown operation %T", op)
	}
	if err != nil {
		return nil, err
	}

	// Non-quarter rotations expand the canvas past the input size, so the
	// dimension bound holds on every result, not only at decode and resize.
	// Without it a chain of rotations grows the pixel buffer geometrically.
	maxDim := p.maxDimension()
	if b := out.Bounds(); b.Dx() > maxDim || b.Dy() > maxDim {
		return nil, fmt.Errorf("%s result %dx%d exceeds the %d pixel bound: %w",
			op.Name(), b.Dx(), b.Dy(), maxDim, ErrResultTooLarge)
	}

	return out, nil
}

func (p *Pipeline) resize(img *image.NRGBA, op Resize) (*image.NRGBA, error) {
	maxDim := p.maxDimension()
	if op.Width < 1 || op.Height < 1 || op.Width > maxDim || op.Height > maxDim {
		return nil, fmt.Errorf("%dx%d: %w", op.Width, op.Height, ErrInvalidResize)
	}

	filter, err := resampleFilter(op.Filter)
	if err != nil {
		return nil, err
	}

	return imaging.Resize(img, op.Width, op.Height, filter), nil
}

func resampleFilter(f Filter) (imaging.ResampleFilter, error) {
	switch f {
	case FilterNearest:
		return imaging.NearestNeighbor, nil
	case FilterBilinear:
		return imaging.Linear, nil
	case FilterLanczos, "":
		return imaging.Lanczos, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("%q: %w", f, ErrUnknownFilter)
	}
}

func (p *Pipeline) crop(img *image.NRGBA, op Crop) (*image.NRGBA, error) {
	rect := image.Rect(op.X, op.Y, op.X+op.Width, op.Y+op.Height)

	// An out-of-bounds rectangle is rejected outright. Clamping it to the
	// image would hide caller mistakes behind a differently sized result.
	if op.Width < 1 || op.Height < 1 || !rect.In(img.Bounds()) {
		return nil, fmt.Errorf("(%d,%d) %dx%d in %dx%d image: %w",
			op.X, op.Y, op.Width, op.Height, img.Bounds().Dx(), img.Bounds().Dy(), ErrInvalidCrop)
	}

	return imaging.Crop(img, rect), nil
}

func (p *Pipeline) rotate(img *image.NRGBA, op Rotate) (*image.NRGBA, error) {
	degrees := math.Mod(op.Degrees, 360)
	if degrees < 0 {
		degrees += 360
	}

	// Quarter turns are lossless, everything else resamples and expands the
	// canvas to the rotated bounding box with transparent fill.
	switch degrees {
	case 0:
		return imaging.Clone(img), nil
	case 90:
		return imaging.Rotate90(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate270(img), nil
	default:
		return imaging.Rotate(img, degrees, color.Transparent), nil
	}
}

func (p *Pipeline) overlayText(img *image.NRGBA, op OverlayText) (*image.NRGBA, error) {
	if op.Size <= 0 {
		return nil, fmt.Errorf("size %v: %w", op.Size, ErrInvalidOverlay)
	}

	f, err := p.Fonts.Lookup(op.FontID)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", op.FontID, ErrFontNotFound)
	}

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(f.Face(op.Size))
	dc.SetColor(op.Color)

	// Anchor the top-left corner of the string at (x, y). Glyphs outside
	// the canvas are clipped by the drawing context.
	dc.DrawStringAnchored(op.Text, float64(op.X), float64(op.Y), 0, 1)

	return imaging.Clone(dc.Image()), nil
}
