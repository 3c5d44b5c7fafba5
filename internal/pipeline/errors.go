package pipeline

import "errors"

// Category groups pipeline errors by how the caller should treat them.
type Category string

const (
	// CategoryInput covers malformed or unacceptable input data.
	CategoryInput Category = "input"
	// CategoryOperation covers invalid operation parameters.
	CategoryOperation Category = "operation"
	// CategoryResource covers load-related failures such as timeouts.
	CategoryResource Category = "resource"
	// CategorySystem covers everything else.
	CategorySystem Category = "system"
)

// Error is a typed pipeline error.
type Error struct {
	Category Category
	Message  string
}

func (e *Error) Error() string {
	return e.Message
}

// Sentinel errors. Callers match these with errors.Is, the http boundary
// maps their category onto a status code with CategoryOf.
var (
	ErrUnsupportedFormat = &Error{Category: CategoryInput, Message: "unsupported image format"}
	ErrFormatMismatch    = &Error{Category: CategoryInput, Message: "declared format does not match image data"}
	ErrTruncated         = &Error{Category: CategoryInput, Message: "truncated image data"}
	ErrInvalidDimensions = &Error{Category: CategoryInput, Message: "image dimensions out of bounds"}

	ErrInvalidResize     = &Error{Category: CategoryOperation, Message: "invalid resize target"}
	ErrInvalidCrop       = &Error{Category: CategoryOperation, Message: "crop rectangle outside image bounds"}
	ErrUnknownFilter     = &Error{Category: CategoryOperation, Message: "unknown resample filter"}
	ErrInvalidOverlay    = &Error{Category: CategoryOperation, Message: "invalid text overlay parameters"}
	ErrFontNotFound      = &Error{Category: CategoryOperation, Message: "font not found"}
	ErrResultTooLarge    = &Error{Category: CategoryOperation, Message: "operation result exceeds dimension bounds"}
	ErrQualityOutOfRange = &Error{Category: CategoryOperation, Message: "quality out of range"}

	ErrTimeout = &Error{Category: CategoryResource, Message: "deadline exceeded"}
)

// CategoryOf returns the category of err, or CategorySystem if err carries
// no pipeline error.
func CategoryOf(err error) Category {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Category
	}

	return CategorySystem
}
