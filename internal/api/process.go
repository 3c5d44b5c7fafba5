package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/YJChan/http-image-processor/internal/handler"
	"github.com/YJChan/http-image-processor/internal/pipeline"
	"github.com/YJChan/http-image-processor/internal/scheduler"
)

func (a *API) processHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)

	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		return handler.BadRequest(fmt.Sprintf("invalid multipart form: %s", err))
	}
	defer r.MultipartForm.RemoveAll()

	manifestData := []byte(r.FormValue("manifest"))
	if len(manifestData) == 0 {
		return handler.BadRequest("missing manifest part")
	}

	request, err := ParseManifest(manifestData)
	if err != nil {
		return handler.BadRequest(err.Error())
	}

	imagePart, _, err := r.FormFile("image")
	if err != nil {
		return handler.BadRequest("missing image part")
	}
	defer imagePart.Close()

	request.Data, err = io.ReadAll(imagePart)
	if err != nil {
		return handler.BadRequest(fmt.Sprintf("reading image part: %s", err))
	}

	processed, err := a.Scheduler.Process(r.Context(), request)
	if err != nil {
		return a.processError(r, err)
	}

	w.Header().Set("Content-Type", request.OutputFormat.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"image.%s\"", request.OutputFormat))
	w.Write(processed)

	return nil
}

// processError maps the error taxonomy onto http status codes, one category
// per code.
func (a *API) processError(r *http.Request, err error) *handler.Error {
	switch {
	case errors.Is(err, scheduler.ErrBusy):
		return &handler.Error{
			Message:  err.Error(),
			Category: string(pipeline.CategoryResource),
			Code:     http.StatusServiceUnavailable,
		}
	case errors.Is(err, pipeline.ErrTimeout):
		return &handler.Error{
			Message:  err.Error(),
			Category: string(pipeline.CategoryResource),
			Code:     http.StatusGatewayTimeout,
		}
	}

	switch category := pipeline.CategoryOf(err); category {
	case pipeline.CategoryInput:
		return &handler.Error{
			Message:  err.Error(),
			Category: string(category),
			Code:     http.StatusBadRequest,
		}
	case pipeline.CategoryOperation:
		return &handler.Error{
			Message:  err.Error(),
			Category: string(category),
			Code:     http.StatusUnprocessableEntity,
		}
	default:
		a.logError(r, "error processing image", err)
		return handler.InternalServerError()
	}
}
