package health

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/YJChan/http-image-processor/internal/fonts"
	"github.com/YJChan/http-image-processor/internal/logger"
	"github.com/YJChan/http-image-processor/internal/pipeline"
	"github.com/YJChan/http-image-processor/internal/scheduler"
)

const checkInterval = 10 * time.Second
const checkTimeout = 8 * time.Second

// Checker is a periodic health checker. It verifies the font registry and
// pushes a tiny self-test pipeline through the scheduler.
type Checker struct {
	Ctx       context.Context
	Scheduler *scheduler.Scheduler
	Fonts     *fonts.Registry
	Log       *logger.Logger
	status    Status
	mutex     sync.RWMutex
}

// Status contains the healthcheck status
type Status struct {
	Healthy  bool   `json:"healthy"`
	Fonts    string `json:"fonts,omitempty"`
	Pipeline string `json:"pipeline,omitempty"`
}

// probe is a 1x1 png run through the scheduler as a self-test
var probe = func() []byte {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	return buf.Bytes()
}()

// Run starts the health checker
func (c *Checker) Run() {
	ticker := time.NewTicker(checkInterval)
	go func() {
		for {
			select {
			case <-ticker.C:
				c.runCheck()
			case <-c.Ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()

	c.runCheck()
}

// Status returns the status of the health checks
func (c *Checker) Status() Status {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.status
}

func (c *Checker) runCheck() {
	ctx, cancel := context.WithTimeout(c.Ctx, checkTimeout)
	defer cancel()

	status := Status{
		Healthy:  true,
		Fonts:    "healthy",
		Pipeline: "healthy",
	}

	if _, err := c.Fonts.Lookup(fonts.DefaultFontID); err != nil {
		status.Healthy = false
		status.Fonts = "unhealthy"
	}

	if c.Scheduler != nil {
		_, err := c.Scheduler.Process(ctx, &pipeline.Request{
			Data: probe,
			Operations: []pipeline.Operation{
				pipeline.Resize{Width: 1, Height: 1, Filter: pipeline.FilterNearest},
			},
			OutputFormat: pipeline.FormatPNG,
		})

		// A full queue means the service is saturated, not broken
		if err != nil && !errors.Is(err, scheduler.ErrBusy) {
			status.Healthy = false
			status.Pipeline = "unhealthy"
		}
	}

	c.mutex.Lock()
	c.status = status
	c.mutex.Unlock()

	if !status.Healthy {
		c.Log.Errorw("healthcheck error",
			"status", status,
		)
	}
}
