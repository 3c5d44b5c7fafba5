package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/YJChan/http-image-processor/internal/fonts"
	"github.com/YJChan/http-image-processor/internal/pipeline"
)

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	registry, err := fonts.New()
	if err != nil {
		t.Fatal(err)
	}

	return &pipeline.Pipeline{Fonts: registry}
}

// uniformImage returns a w x h image filled with c
func uniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	return img
}

func pngBytes(t *testing.T, img *image.NRGBA) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

var white = color.NRGBA{255, 255, 255, 255}

// hasInkNear reports whether any pixel in the size x size square anchored at
// (x, y) differs clearly from a white background
func hasInkNear(img *image.NRGBA, x, y, size int) bool {
	for py := y; py < y+size; py++ {
		for px := x; px < x+size; px++ {
			c := img.NRGBAAt(px, py)
			if c.A > 0 && (c.R < 200 || c.G < 200 || c.B < 200) {
				return true
			}
		}
	}

	return false
}

func TestRunAppliesOperationsInOrder(t *testing.T) {
	p := newPipeline(t)

	// Crop after resize refers to resized coordinates: a (60,0) crop is only
	// valid against the 100 pixel wide resize result, not the 50 pixel input.
	data, err := p.Run(context.Background(), &pipeline.Request{
		Data: pngBytes(t, uniformImage(50, 50, white)),
		Operations: []pipeline.Operation{
			pipeline.Resize{Width: 100, Height: 100, Filter: pipeline.FilterNearest},
			pipeline.Crop{X: 60, Y: 0, Width: 40, Height: 40},
		},
		OutputFormat: pipeline.FormatPNG,
	})
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	if got := decoded.Bounds().Size(); got.X != 40 || got.Y != 40 {
		t.Fatalf("expected 40x40, got %dx%d", got.X, got.Y)
	}
}

func TestRunFailedOperationReturnsNoOutput(t *testing.T) {
	p := newPipeline(t)

	data, err := p.Run(context.Background(), &pipeline.Request{
		Data: pngBytes(t, uniformImage(50, 50, white)),
		Operations: []pipeline.Operation{
			pipeline.Resize{Width: 25, Height: 25},
			pipeline.Crop{X: 20, Y: 20, Width: 10, Height: 10}, // outside the 25x25 result
		},
		OutputFormat: pipeline.FormatPNG,
	})
	if !errors.Is(err, pipeline.ErrInvalidCrop) {
		t.Fatalf("expected ErrInvalidCrop, got %v", err)
	}

	if data != nil {
		t.Fatal("expected no partial output")
	}
}

func TestRunRepeatedRotationsStayBounded(t *testing.T) {
	p := newPipeline(t)
	p.MaxDimension = 64

	ops := make([]pipeline.Operation, 6)
	for i := range ops {
		ops[i] = pipeline.Rotate{Degrees: 45}
	}

	// Every diagonal rotation expands the canvas. The chain fails as soon
	// as one result crosses the bound instead of compounding the growth.
	data, err := p.Run(context.Background(), &pipeline.Request{
		Data:         pngBytes(t, uniformImage(60, 60, white)),
		Operations:   ops,
		OutputFormat: pipeline.FormatPNG,
	})
	if !errors.Is(err, pipeline.ErrResultTooLarge) {
		t.Fatalf("expected ErrResultTooLarge, got %v", err)
	}

	if data != nil {
		t.Fatal("expected no partial output")
	}
}

func TestRunDeadlineExceeded(t *testing.T) {
	p := newPipeline(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := p.Run(ctx, &pipeline.Request{
		Data: pngBytes(t, uniformImage(50, 50, white)),
		Operations: []pipeline.Operation{
			pipeline.Resize{Width: 25, Height: 25},
		},
		OutputFormat: pipeline.FormatPNG,
	})
	if !errors.Is(err, pipeline.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	if pipeline.CategoryOf(err) != pipeline.CategoryResource {
		t.Fatalf("expected resource category, got %v", pipeline.CategoryOf(err))
	}
}

func TestRunCanceledContext(t *testing.T) {
	p := newPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, &pipeline.Request{
		Data: pngBytes(t, uniformImage(50, 50, white)),
		Operations: []pipeline.Operation{
			pipeline.Resize{Width: 25, Height: 25},
		},
		OutputFormat: pipeline.FormatPNG,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunWithoutOperations(t *testing.T) {
	p := newPipeline(t)

	// A request with no operations is a pure format conversion
	data, err := p.Run(context.Background(), &pipeline.Request{
		Data:         pngBytes(t, uniformImage(10, 10, white)),
		OutputFormat: pipeline.FormatBMP,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(data) == 0 {
		t.Fatal("expected encoded output")
	}
}
