package api

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/YJChan/http-image-processor/internal/pipeline"
)

// Manifest is the wire form of a processing request, sent as the "manifest"
// part of the multipart upload. The image payload travels as a separate
// binary part, keeping the manifest itself plain JSON.
type Manifest struct {
	// InputFormat optionally declares the format of the uploaded image.
	// It must agree with what the image data actually contains.
	InputFormat string          `json:"input_format,omitempty"`
	Operations  []operationSpec `json:"operations"`
	Output      outputSpec      `json:"output"`
}

type operationSpec struct {
	Op      string  `json:"op"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	X       int     `json:"x,omitempty"`
	Y       int     `json:"y,omitempty"`
	Filter  string  `json:"filter,omitempty"`
	Degrees float64 `json:"degrees,omitempty"`
	Text    string  `json:"text,omitempty"`
	Font    string  `json:"font,omitempty"`
	Size    float64 `json:"size,omitempty"`
	Color   string  `json:"color,omitempty"`
}

type outputSpec struct {
	Format  string `json:"format"`
	Quality int    `json:"quality,omitempty"`
}

// ParseManifest decodes a manifest and builds the pipeline request for it,
// leaving Data to be filled in from the image part. Structural problems are
// reported here; semantic validation of operation parameters happens inside
// the pipeline.
func ParseManifest(data []byte) (*pipeline.Request, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest json: %w", err)
	}

	outputFormat, err := pipeline.ParseFormat(manifest.Output.Format)
	if err != nil {
		return nil, fmt.Errorf("output format: %w", err)
	}

	operations := make([]pipeline.Operation, 0, len(manifest.Operations))
	for i, spec := range manifest.Operations {
		op, err := spec.operation()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}

		operations = append(operations, op)
	}

	return &pipeline.Request{
		DeclaredFormat: manifest.InputFormat,
		Operations:     operations,
		OutputFormat:   outputFormat,
		Quality:        manifest.Output.Quality,
	}, nil
}

func (spec operationSpec) operation() (pipeline.Operation, error) {
	switch spec.Op {
	case "resize":
		return pipeline.Resize{
			Width:  spec.Width,
			Height: spec.Height,
			Filter: pipeline.Filter(spec.Filter),
		}, nil
	case "crop":
		return pipeline.Crop{
			X:      spec.X,
			Y:      spec.Y,
			Width:  spec.Width,
			Height: spec.Height,
		}, nil
	case "rotate":
		return pipeline.Rotate{
			Degrees: spec.Degrees,
		}, nil
	case "overlay_text":
		c, err := parseColor(spec.Color)
		if err != nil {
			return nil, err
		}

		font := spec.Font
		if font == "" {
			font = "default"
		}

		return pipeline.OverlayText{
			Text:   spec.Text,
			FontID: font,
			Size:   spec.Size,
			X:      spec.X,
			Y:      spec.Y,
			Color:  c,
		}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", spec.Op)
	}
}

var namedColors = map[string]color.NRGBA{
	"black": {0, 0, 0, 255},
	"white": {255, 255, 255, 255},
	"red":   {255, 0, 0, 255},
	"green": {0, 255, 0, 255},
	"blue":  {0, 0, 255, 255},
}

// parseColor understands a few named colors plus #RGB, #RRGGBB and
// #RRGGBBAA hex notation. An empty string means opaque black.
func parseColor(s string) (color.NRGBA, error) {
	if s == "" {
		return color.NRGBA{A: 255}, nil
	}

	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, nil
	}

	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	expand := func(v uint64) uint8 {
		return uint8(v<<4 | v)
	}

	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	switch len(hex) {
	case 3:
		return color.NRGBA{
			R: expand(value >> 8 & 0xf),
			G: expand(value >> 4 & 0xf),
			B: expand(value & 0xf),
			A: 255,
		}, nil
	case 6:
		return color.NRGBA{
			R: uint8(value >> 16),
			G: uint8(value >> 8),
			B: uint8(value),
			A: 255,
		}, nil
	case 8:
		return color.NRGBA{
			R: uint8(value >> 24),
			G: uint8(value >> 16),
			B: uint8(value >> 8),
			A: uint8(value),
		}, nil
	default:
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
}
