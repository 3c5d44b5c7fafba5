package api

import (
	"encoding/json"
	"net/http"

	"github.com/YJChan/http-image-processor/internal/handler"
	"github.com/YJChan/http-image-processor/internal/pipeline"
)

// contract describes the processing capabilities of the service, making the
// wire contract self-describing for clients.
type contract struct {
	Formats    []pipeline.Format `json:"formats"`
	Filters    []pipeline.Filter `json:"filters"`
	Operations []string          `json:"operations"`
	Fonts      []string          `json:"fonts"`
}

func (a *API) formatsHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	data := contract{
		Formats:    pipeline.Formats(),
		Filters:    pipeline.Filters(),
		Operations: []string{"resize", "crop", "rotate", "overlay_text"},
		Fonts:      a.Fonts.IDs(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return handler.InternalServerError()
	}

	return nil
}
