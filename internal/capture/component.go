package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dermassist/client/internal/ids"
	"dermassist/client/internal/media/sniffer"
	"dermassist/client/internal/models"
)

type Mode string

const (
	ModeUpload Mode = "upload"
	ModeCamera Mode = "camera"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeUpload, ModeCamera:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown capture mode %q", s)
}

type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StatePreviewing State = "previewing"
)

type Options struct {
	Width  int
	Height int
	// OnSelect receives every accepted image, and nil when the preview is
	// cleared.
	OnSelect func(*models.CapturedImage)
}

// Status is a copy of the component state for rendering.
type Status struct {
	Mode        Mode   `json:"mode"`
	State       State  `json:"state"`
	Facing      Facing `json:"facing"`
	Opening     bool   `json:"opening"`
	Error       string `json:"error,omitempty"`
	Preview     string `json:"preview,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Component owns at most one camera stream at a time. Every operation that
// touches the stream runs under opMu, and acquiring always releases the
// previous stream first.
type Component struct {
	device Device
	opts   Options
	log    zerolog.Logger
	now    func() time.Time

	opMu sync.Mutex

	mu        sync.RWMutex
	mode      Mode
	facing    Facing
	stream    Stream
	opening   bool
	cameraErr *CameraError
	image     *models.CapturedImage
}

func NewComponent(device Device, opts Options, log zerolog.Logger) *Component {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	return &Component{
		device: device,
		opts:   opts,
		log:    log.With().Str("component", "capture").Logger(),
		now:    time.Now,
		mode:   ModeUpload,
		facing: FacingEnvironment,
	}
}

func (c *Component) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Mode:    c.mode,
		State:   c.stateLocked(),
		Facing:  c.facing,
		Opening: c.opening,
	}
	if c.cameraErr != nil {
		st.Error = c.cameraErr.Message()
	}
	if c.image != nil {
		st.Preview = c.image.Preview
		st.Filename = c.image.Filename
		st.ContentType = c.image.ContentType
	}
	return st
}

func (c *Component) stateLocked() State {
	switch {
	case c.image != nil:
		return StatePreviewing
	case c.mode == ModeCamera && c.stream != nil:
		return StateCapturing
	default:
		return StateIdle
	}
}

// Image returns the selected image, or nil.
func (c *Component) Image() *models.CapturedImage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.image
}

// Upload offers a file. Types other than JPEG and PNG are ignored without
// any state change; the return value reports whether the file was taken.
// An accepted file stops any live camera stream.
func (c *Component) Upload(filename, contentType string, data []byte) bool {
	contentType = sniffer.ContentType(contentType, data)
	if !sniffer.Accepted(contentType) || len(data) == 0 {
		c.log.Debug().Str("filename", filename).Str("content_type", contentType).Msg("upload ignored")
		return false
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.release()
	c.accept(filename, contentType, data, models.ImageSourceUpload)
	return true
}

func (c *Component) accept(filename, contentType string, data []byte, source models.ImageSource) *models.CapturedImage {
	img := &models.CapturedImage{
		ID:          ids.New(),
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		Preview:     "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
		Source:      source,
		CreatedAt:   c.now(),
	}

	c.mu.Lock()
	c.image = img
	c.mu.Unlock()

	c.log.Info().Str("image_id", img.ID).Str("source", string(source)).Int("bytes", len(data)).Msg("image selected")
	c.notify(img)
	return img
}

func (c *Component) notify(img *models.CapturedImage) {
	if c.opts.OnSelect != nil {
		c.opts.OnSelect(img)
	}
}

// SetMode switches between upload and camera. A change of mode drops the
// preview and any stream; entering camera mode opens a fresh stream.
func (c *Component) SetMode(ctx context.Context, mode Mode) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	current := c.mode
	hadImage := c.image != nil
	c.mu.RUnlock()

	if mode != current {
		c.release()
		c.mu.Lock()
		c.mode = mode
		c.image = nil
		c.cameraErr = nil
		c.mu.Unlock()
		if hadImage {
			c.notify(nil)
		}
		hadImage = false
	}

	if mode == ModeCamera && !hadImage {
		return c.acquire(ctx)
	}
	return nil
}

// Open (re)starts the camera stream when in camera mode without a preview.
func (c *Component) Open(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !c.wantsStream() {
		return nil
	}
	return c.acquire(ctx)
}

// Retry re-requests the stream after a failure.
func (c *Component) Retry(ctx context.Context) error {
	return c.Open(ctx)
}

// Flip toggles the facing mode and restarts the stream.
func (c *Component) Flip(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.facing = c.facing.Flip()
	c.mu.Unlock()

	if !c.wantsStream() {
		return nil
	}
	return c.acquire(ctx)
}

// Shutter grabs the current frame, mirrors it for the front camera, encodes
// it as JPEG and selects it like an upload. The stream is stopped after a
// successful capture.
func (c *Component) Shutter(ctx context.Context) (*models.CapturedImage, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	stream, facing := c.stream, c.facing
	c.mu.RUnlock()
	if stream == nil {
		return nil, ErrNoStream
	}

	frame, err := stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("grab frame: %w", err)
	}
	data, err := renderFrame(frame, facing)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	c.release()
	name := fmt.Sprintf("capture-%d.jpg", c.now().UnixMilli())
	return c.accept(name, sniffer.MIMEJPEG, data, models.ImageSourceCamera), nil
}

// Clear drops the preview. In camera mode this is a retake and the stream
// is reopened.
func (c *Component) Clear(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	hadImage := c.image != nil
	c.image = nil
	mode := c.mode
	c.mu.Unlock()

	if hadImage {
		c.notify(nil)
	}
	if mode == ModeCamera {
		return c.acquire(ctx)
	}
	return nil
}

// Close releases the camera.
func (c *Component) Close() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.release()
}

func (c *Component) wantsStream() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode == ModeCamera && c.image == nil
}

// acquire is the only path that installs a stream. Callers hold opMu.
func (c *Component) acquire(ctx context.Context) error {
	c.release()

	c.mu.Lock()
	c.opening = true
	c.cameraErr = nil
	constraints := Constraints{Facing: c.facing, Width: c.opts.Width, Height: c.opts.Height}
	c.mu.Unlock()

	stream, err := c.device.Open(ctx, constraints)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opening = false
	if err != nil {
		if stream != nil {
			_ = stream.Close()
		}
		c.cameraErr = asCameraError(err)
		c.log.Warn().Err(err).Str("facing", string(constraints.Facing)).Msg("camera open failed")
		return c.cameraErr
	}
	c.stream = stream
	c.log.Debug().Str("facing", string(constraints.Facing)).Msg("camera stream started")
	return nil
}

// release stops the current stream, if any. Callers hold opMu.
func (c *Component) release() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		c.log.Warn().Err(err).Msg("camera stream close failed")
	}
	c.log.Debug().Msg("camera stream stopped")
}

// Frames delivers JPEG frames of the live stream to fn at the given interval
// until ctx ends, fn fails or the stream goes away.
func (c *Component) Frames(ctx context.Context, interval time.Duration, fn func([]byte) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.mu.RLock()
		stream, facing := c.stream, c.facing
		c.mu.RUnlock()
		if stream == nil {
			return ErrNoStream
		}

		frame, err := stream.Frame(ctx)
		switch {
		case err == nil:
			data, err := renderFrame(frame, facing)
			if err != nil {
				return err
			}
			if err := fn(data); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case !errors.Is(err, ErrStreamClosed):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
