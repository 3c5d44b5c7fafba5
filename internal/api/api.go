package api

import (
	"net/http"
	"time"

	"github.com/YJChan/http-image-processor/internal/fonts"
	"github.com/YJChan/http-image-processor/internal/handler"
	"github.com/YJChan/http-image-processor/internal/health"
	"github.com/YJChan/http-image-processor/internal/logger"
	"github.com/YJChan/http-image-processor/internal/scheduler"
	"github.com/gorilla/mux"
)

// API is a http api
type API struct {
	Scheduler      *scheduler.Scheduler
	Fonts          *fonts.Registry
	HealthChecker  *health.Checker
	Log            *logger.Logger
	HandlerTimeout time.Duration
	MaxUploadBytes int64
}

// Utility methods for logging
func (a *API) logError(r *http.Request, message string, err error) {
	a.Log.Errorw(message, handler.LogFields(r, "error", err)...)
}

// Router returns a http router
func (a *API) Router() http.Handler {
	router := mux.NewRouter()

	router.NotFoundHandler = handler.Handler(a.notFoundHandler)

	// Redirect trailing slashes
	router.StrictSlash(true)

	// Healthcheck
	router.Handle("/health", handler.Health(a.HealthChecker)).Methods("GET")

	// Upload form
	router.HandleFunc("/", a.indexHandler).Methods("GET")

	// Processing contract
	router.Handle("/formats", handler.Handler(a.formatsHandler)).Methods("GET")

	// Image processing
	// Multipart form parts:
	// image - the binary image payload
	// manifest - the json processing manifest
	router.Handle("/process", handler.Handler(a.processHandler)).Methods("POST")

	// Set up handlers for adding a request id, handling panics, request logging, setting CORS headers,
	// collecting metrics, and handler execution timeout
	return handler.AddRequestID(
		handler.Recovery(a.Log,
			handler.Logger(a.Log,
				handler.CORS(nil,
					handler.Metrics(
						http.TimeoutHandler(router, a.HandlerTimeout, "Something went wrong. Timed out."),
						&handler.MuxRouteMatcher{Router: router})))))
}

// Handle not found errors
var notFoundError = &handler.Error{
	Message: "page not found",
	Code:    http.StatusNotFound,
}

func (a *API) notFoundHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return notFoundError
}

const indexPage = `<!doctype html>
<html>
	<head><title>image processor</title></head>
	<body>
		<h3>Upload an image with a processing manifest</h3>
		<form action="/process" method="post" enctype="multipart/form-data">
			<div>
				<label>Image: <input type="file" name="image"></label>
			</div>
			<div>
				<label>Manifest:
					<textarea name="manifest" rows="8" cols="60">{"operations":[{"op":"resize","width":400,"height":300,"filter":"lanczos"}],"output":{"format":"jpeg","quality":80}}</textarea>
				</label>
			</div>
			<button type="submit">Process</button>
		</form>
	</body>
</html>
`

func (a *API) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}
