package pipeline

import "image/color"

// Filter selects the resampling kernel used for a resize.
type Filter string

// Supported resample filters
const (
	FilterNearest  Filter = "nearest"
	FilterBilinear Filter = "bilinear"
	FilterLanczos  Filter = "lanczos"
)

// Filters lists the supported resample filters.
func Filters() []Filter {
	return []Filter{FilterNearest, FilterBilinear, FilterLanczos}
}

// Operation is a single transformation step. The set of operations is closed:
// the transform stage matches exhaustively over the four variants below.
type Operation interface {
	// Name returns the operation name as used in the request manifest
	Name() string

	sealed()
}

// Resize scales the image to Width x Height using the given filter.
type Resize struct {
	Width  int
	Height int
	Filter Filter
}

// Crop extracts the rectangle at (X, Y) with the given size. The rectangle
// must lie entirely within the image bounds.
type Crop struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rotate rotates the image counter-clockwise by an arbitrary angle in
// degrees. The output canvas grows to the rotated bounding box, with
// transparent fill where the source does not cover it.
type Rotate struct {
	Degrees float64
}

// OverlayText draws Text with the registry font FontID at the given size,
// anchored with its top-left corner at (X, Y). Glyphs extending outside the
// canvas are clipped.
type OverlayText struct {
	Text   string
	FontID string
	Size   float64
	X      int
	Y      int
	Color  color.NRGBA
}

// Name returns "resize"
func (Resize) Name() string { return "resize" }

// Name returns "crop"
func (Crop) Name() string { return "crop" }

// Name returns "rotate"
func (Rotate) Name() string { return "rotate" }

// Name returns "overlay_text"
func (OverlayText) Name() string { return "overlay_text" }

func (Resize) sealed()      {}
func (Crop) sealed()        {}
func (Rotate) sealed()      {}
func (OverlayText) sealed() {}
