package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/YJChan/http-image-processor/internal/fonts"
)

// DefaultMaxDimension bounds decoded and resized image dimensions.
const DefaultMaxDimension = 8192

// Request describes one full pipeline run.
type Request struct {
	// Data is the raw input image
	Data []byte
	// DeclaredFormat optionally names the input format the caller believes
	// it sent. It must agree with the sniffed format.
	DeclaredFormat string
	// Operations are applied strictly in order
	Operations []Operation
	// OutputFormat selects the encoding of the result
	OutputFormat Format
	// Quality applies to JPEG output, zero means default
	Quality int
}

// Pipeline executes decode, transform and encode stages for single requests.
// It is stateless apart from the font registry and safe for concurrent use.
type Pipeline struct {
	Fonts *fonts.Registry

	// MaxDimension overrides DefaultMaxDimension when positive
	MaxDimension int
}

func (p *Pipeline) maxDimension() int {
	if p.MaxDimension > 0 {
		return p.MaxDimension
	}

	return DefaultMaxDimension
}

// Run executes a whole request. The context deadline is checked between
// stages and between operations, never inside one, making the timeout a
// cooperative best-effort bound rather than a hard guarantee. A run that
// fails at any point returns no partial output.
func (p *Pipeline) Run(ctx context.Context, req *Request) ([]byte, error) {
	img, err := p.Decode(req.Data, req.DeclaredFormat)
	if err != nil {
		return nil, err
	}

	for i, op := range req.Operations {
		if err := checkDeadline(ctx); err != nil {
			return nil, err
		}

		img, err = p.Apply(img, op)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, op.Name(), err)
		}
	}

	if err := checkDeadline(ctx); err != nil {
		return nil, err
	}

	return p.Encode(img, req.OutputFormat, req.Quality)
}

func checkDeadline(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	return err
}
