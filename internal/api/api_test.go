package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/YJChan/http-image-processor/internal/api"
	"github.com/YJChan/http-image-processor/internal/fonts"
	"github.com/YJChan/http-image-processor/internal/health"
	"github.com/YJChan/http-image-processor/internal/logger"
	"github.com/YJChan/http-image-processor/internal/pipeline"
	"github.com/YJChan/http-image-processor/internal/scheduler"
	"go.uber.org/zap"
)

func setupAPI(t *testing.T) *httptest.Server {
	t.Helper()

	log := logger.New(zap.FatalLevel)

	registry, err := fonts.New()
	if err != nil {
		t.Fatal(err)
	}

	pipe := &pipeline.Pipeline{Fonts: registry}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sched := scheduler.New(ctx, log, 2, 4, 10*time.Second, pipe.Run)
	go sched.Run()

	checker := &health.Checker{
		Ctx:       ctx,
		Scheduler: sched,
		Fonts:     registry,
		Log:       log,
	}
	checker.Run()

	a := &api.API{
		Scheduler:      sched,
		Fonts:          registry,
		HealthChecker:  checker,
		Log:            log,
		HandlerTimeout: time.Minute,
		MaxUploadBytes: 16 << 20,
	}

	ts := httptest.NewServer(a.Router())
	t.Cleanup(ts.Close)

	return ts
}

// multipartBody builds the multipart request body for /process
func multipartBody(t *testing.T, image []byte, manifest string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if image != nil {
		part, err := writer.CreateFormFile("image", "input")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatal(err)
		}
	}

	if manifest != "" {
		if err := writer.WriteField("manifest", manifest); err != nil {
			t.Fatal(err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	return &buf, writer.FormDataContentType()
}

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func TestProcessEndToEnd(t *testing.T) {
	ts := setupAPI(t)

	manifest := `{
		"operations": [
			{"op": "resize", "width": 50, "height": 50, "filter": "bilinear"},
			{"op": "overlay_text", "text": "hi", "font": "default", "size": 12, "x": 5, "y": 5, "color": "black"}
		],
		"output": {"format": "jpeg", "quality": 80}
	}`

	body, contentType := multipartBody(t, whitePNG(t, 100, 100), manifest)
	res, err := http.Post(ts.URL+"/process", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("wrong status code %#v", res.StatusCode)
	}

	if got := res.Header.Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("wrong content type %q", got)
	}

	decoded, err := jpeg.Decode(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	if got := decoded.Bounds().Size(); got.X != 50 || got.Y != 50 {
		t.Fatalf("expected 50x50, got %dx%d", got.X, got.Y)
	}

	// The overlaid text leaves non-background pixels near the anchor
	found := false
	for y := 5; y < 25 && !found; y++ {
		for x := 5; x < 25; x++ {
			r, g, b, _ := decoded.At(x, y).RGBA()
			if r>>8 < 200 || g>>8 < 200 || b>>8 < 200 {
				found = true
				break
			}
		}
	}

	if !found {
		t.Fatal("expected the overlaid text to be visible near (5,5)")
	}
}

func TestProcessErrors(t *testing.T) {
	ts := setupAPI(t)

	pngData := whitePNG(t, 100, 100)

	tests := []struct {
		name             string
		image            []byte
		manifest         string
		expectedStatus   int
		expectedCategory string
	}{
		{
			name:           "missing image part",
			image:          nil,
			manifest:       `{"operations": [], "output": {"format": "png"}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing manifest part",
			image:          pngData,
			manifest:       "",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid manifest",
			image:          pngData,
			manifest:       `{"operations": [{"op": "sharpen"}], "output": {"format": "png"}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:             "undecodable image",
			image:            []byte("not an image"),
			manifest:         `{"operations": [], "output": {"format": "png"}}`,
			expectedStatus:   http.StatusBadRequest,
			expectedCategory: "input",
		},
		{
			name:             "declared format mismatch",
			image:            pngData,
			manifest:         `{"input_format": "jpeg", "operations": [], "output": {"format": "png"}}`,
			expectedStatus:   http.StatusBadRequest,
			expectedCategory: "input",
		},
		{
			name:             "out of bounds crop",
			image:            pngData,
			manifest:         `{"operations": [{"op": "crop", "x": 90, "y": 90, "width": 20, "height": 20}], "output": {"format": "png"}}`,
			expectedStatus:   http.StatusUnprocessableEntity,
			expectedCategory: "operation",
		},
		{
			name:             "unknown font",
			image:            pngData,
			manifest:         `{"operations": [{"op": "overlay_text", "text": "hi", "font": "missing", "size": 12}], "output": {"format": "png"}}`,
			expectedStatus:   http.StatusUnprocessableEntity,
			expectedCategory: "operation",
		},
		{
			name:             "quality out of range",
			image:            pngData,
			manifest:         `{"operations": [], "output": {"format": "jpeg", "quality": 150}}`,
			expectedStatus:   http.StatusUnprocessableEntity,
			expectedCategory: "operation",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			body, contentType := multipartBody(t, test.image, test.manifest)
			res, err := http.Post(ts.URL+"/process", contentType, body)
			if err != nil {
				t.Fatal(err)
			}
			defer res.Body.Close()

			if res.StatusCode != test.expectedStatus {
				t.Fatalf("wrong status code %#v", res.StatusCode)
			}

			var errBody struct {
				Error    string `json:"error"`
				Category string `json:"category"`
			}
			if err := json.NewDecoder(res.Body).Decode(&errBody); err != nil {
				t.Fatal(err)
			}

			if errBody.Error == "" {
				t.Fatal("expected an error message")
			}

			if test.expectedCategory != "" && errBody.Category != test.expectedCategory {
				t.Fatalf("expected category %q, got %q", test.expectedCategory, errBody.Category)
			}
		})
	}
}

func TestFormats(t *testing.T) {
	ts := setupAPI(t)

	res, err := http.Get(ts.URL + "/formats")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("wrong status code %#v", res.StatusCode)
	}

	var contract struct {
		Formats    []string `json:"formats"`
		Filters    []string `json:"filters"`
		Operations []string `json:"operations"`
		Fonts      []string `json:"fonts"`
	}
	if err := json.NewDecoder(res.Body).Decode(&contract); err != nil {
		t.Fatal(err)
	}

	if len(contract.Formats) == 0 || len(contract.Filters) == 0 || len(contract.Operations) == 0 {
		t.Fatalf("incomplete contract %#v", contract)
	}

	if len(contract.Fonts) == 0 || contract.Fonts[0] != "default" {
		t.Fatalf("expected the default font to be listed, got %v", contract.Fonts)
	}
}

func TestHealth(t *testing.T) {
	ts := setupAPI(t)

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("wrong status code %#v", res.StatusCode)
	}

	var status struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}

	if !status.Healthy {
		t.Fatal("expected a healthy status")
	}
}

func TestNotFound(t *testing.T) {
	ts := setupAPI(t)

	res, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("wrong status code %#v", res.StatusCode)
	}
}

func TestIndexServesForm(t *testing.T) {
	ts := setupAPI(t)

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("wrong status code %#v", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Contains(body, []byte("multipart/form-data")) {
		t.Fatal("expected the upload form")
	}
}
