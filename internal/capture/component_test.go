package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"dermassist/client/internal/models"
)

type fakeStream struct {
	dev    *fakeDevice
	frame  image.Image
	closed bool
}

func (s *fakeStream) Frame(ctx context.Context) (image.Image, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	return s.frame, nil
}

func (s *fakeStream) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.dev.active--
	}
	return nil
}

type fakeDevice struct {
	mu        sync.Mutex
	active    int
	maxActive int
	opens     []Constraints
	err       error
	frame     image.Image
}

func (d *fakeDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens = append(d.opens, c)
	if d.err != nil {
		return nil, d.err
	}
	d.active++
	if d.active > d.maxActive {
		d.maxActive = d.active
	}
	frame := d.frame
	if frame == nil {
		frame = testFrame(64, 48)
	}
	return &fakeStream{dev: d, frame: frame}, nil
}

func (d *fakeDevice) counts() (active, maxActive, opens int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active, d.maxActive, len(d.opens)
}

// testFrame is red on the left half and blue on the right.
func testFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= w/2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

type selections struct {
	mu   sync.Mutex
	seen []*models.CapturedImage
}

func (s *selections) record(img *models.CapturedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, img)
}

func (s *selections) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func newTestComponent(dev Device) (*Component, *selections) {
	sel := &selections{}
	c := NewComponent(dev, Options{OnSelect: sel.record}, zerolog.Nop())
	return c, sel
}

var pngHead = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestUploadIgnoresUnsupportedTypes(t *testing.T) {
	c, sel := newTestComponent(&fakeDevice{})

	if c.Upload("anim.gif", "image/gif", []byte("GIF89a......")) {
		t.Fatal("gif should be ignored")
	}
	st := c.Status()
	if st.State != StateIdle || st.Preview != "" || st.Error != "" {
		t.Errorf("state changed: %+v", st)
	}
	if sel.len() != 0 {
		t.Errorf("parent notified %d times", sel.len())
	}
}

func TestUploadAcceptsPNG(t *testing.T) {
	c, sel := newTestComponent(&fakeDevice{})

	if !c.Upload("mole.png", "", pngHead) {
		t.Fatal("png should be accepted")
	}
	st := c.Status()
	if st.State != StatePreviewing || st.ContentType != "image/png" {
		t.Errorf("unexpected status %+v", st)
	}
	if want := "data:image/png;base64,"; len(st.Preview) <= len(want) || st.Preview[:len(want)] != want {
		t.Errorf("preview = %q", st.Preview)
	}
	if sel.len() != 1 || sel.seen[0].Source != models.ImageSourceUpload {
		t.Errorf("selections = %v", sel.seen)
	}
}

func TestEnteringCameraTwiceKeepsOneStream(t *testing.T) {
	dev := &fakeDevice{}
	c, _ := newTestComponent(dev)
	ctx := context.Background()

	if err := c.SetMode(ctx, ModeCamera); err != nil {
		t.Fatal(err)
	}
	if err := c.SetMode(ctx, ModeCamera); err != nil {
		t.Fatal(err)
	}
	if err := c.Open(ctx); err != nil {
		t.Fatal(err)
	}

	active, maxActive, opens := dev.counts()
	if opens != 3 || active != 1 || maxActive != 1 {
		t.Errorf("opens=%d active=%d max=%d", opens, active, maxActive)
	}
	if st := c.Status(); st.State != StateCapturing {
		t.Errorf("state = %s", st.State)
	}

	c.Close()
	if active, _, _ := dev.counts(); active != 0 {
		t.Errorf("stream leaked after Close")
	}
}

func TestModeSwitchClearsPreview(t *testing.T) {
	dev := &fakeDevice{}
	c, sel := newTestComponent(dev)
	ctx := context.Background()

	c.Upload("mole.png", "image/png", pngHead)
	if err := c.SetMode(ctx, ModeCamera); err != nil {
		t.Fatal(err)
	}

	st := c.Status()
	if st.Preview != "" || st.State != StateCapturing {
		t.Errorf("unexpected status %+v", st)
	}
	if sel.len() != 2 || sel.seen[1] != nil {
		t.Errorf("expected a clear notification, got %v", sel.seen)
	}

	if err := c.SetMode(ctx, ModeUpload); err != nil {
		t.Fatal(err)
	}
	if active, _, _ := dev.counts(); active != 0 {
		t.Errorf("stream not released on mode switch")
	}
}

func TestShutterMirrorsFrontCamera(t *testing.T) {
	dev := &fakeDevice{}
	c, sel := newTestComponent(dev)
	ctx := context.Background()

	if err := c.SetMode(ctx, ModeCamera); err != nil {
		t.Fatal(err)
	}
	if err := c.Flip(ctx); err != nil {
		t.Fatal(err)
	}
	if dev.opens[len(dev.opens)-1].Facing != FacingUser {
		t.Fatalf("flip did not reopen with user facing: %v", dev.opens)
	}

	img, err := c.Shutter(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if img.ContentType != "image/jpeg" || img.Source != models.ImageSourceCamera {
		t.Errorf("unexpected image %+v", img)
	}
	if active, _, _ := dev.counts(); active != 0 {
		t.Errorf("stream still active after capture")
	}
	if sel.len() != 1 {
		t.Errorf("selections = %d", sel.len())
	}

	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatal(err)
	}
	r, _, b, _ := decoded.At(2, 2).RGBA()
	if b < r {
		t.Errorf("left edge should be blue after mirroring, got r=%d b=%d", r, b)
	}
}

func TestCameraErrorsAreMapped(t *testing.T) {
	dev := &fakeDevice{err: &CameraError{Kind: KindPermissionDenied}}
	c, _ := newTestComponent(dev)
	ctx := context.Background()

	err := c.SetMode(ctx, ModeCamera)
	var camErr *CameraError
	if !errors.As(err, &camErr) || camErr.Kind != KindPermissionDenied {
		t.Fatalf("err = %v", err)
	}
	if st := c.Status(); st.Error != KindPermissionDenied.Message() || st.State != StateIdle {
		t.Errorf("unexpected status %+v", st)
	}

	dev.mu.Lock()
	dev.err = nil
	dev.mu.Unlock()
	if err := c.Retry(ctx); err != nil {
		t.Fatal(err)
	}
	if st := c.Status(); st.Error != "" || st.State != StateCapturing {
		t.Errorf("retry did not recover: %+v", st)
	}

	dev.mu.Lock()
	dev.err = errors.New("boom")
	dev.mu.Unlock()
	if err := c.Retry(ctx); err == nil {
		t.Fatal("expected error")
	}
	if st := c.Status(); st.Error != KindUnknown.Message() {
		t.Errorf("error = %q", st.Error)
	}
	c.Close()
}

func TestShutterWithoutStream(t *testing.T) {
	c, _ := newTestComponent(&fakeDevice{})
	if _, err := c.Shutter(context.Background()); !errors.Is(err, ErrNoStream) {
		t.Errorf("err = %v", err)
	}
}

func TestUploadInCameraModeStopsStream(t *testing.T) {
	dev := &fakeDevice{}
	c, sel := newTestComponent(dev)
	ctx := context.Background()

	if err := c.SetMode(ctx, ModeCamera); err != nil {
		t.Fatal(err)
	}
	if !c.Upload("a.png", "image/png", pngHead) {
		t.Fatal("png should be accepted")
	}

	if active, _, _ := dev.counts(); active != 0 {
		t.Errorf("camera stream still active after selecting an image: %d", active)
	}
	st := c.Status()
	if st.State != StatePreviewing || st.Mode != ModeCamera {
		t.Errorf("unexpected status %+v", st)
	}
	if sel.len() != 1 || sel.seen[0] == nil {
		t.Errorf("selections = %v", sel.seen)
	}
}

func TestFlipRestartsStreamWithNewFacing(t *testing.T) {
	dev := &fakeDevice{}
	c, _ := newTestComponent(dev)
	ctx := context.Background()

	if err := c.SetMode(ctx, ModeCamera); err != nil {
		t.Fatal(err)
	}
	if err := c.Flip(ctx); err != nil {
		t.Fatal(err)
	}

	active, maxActive, opens := dev.counts()
	if opens != 2 || active != 1 || maxActive != 1 {
		t.Fatalf("opens=%d active=%d max=%d", opens, active, maxActive)
	}
	if dev.opens[0].Facing != FacingEnvironment || dev.opens[1].Facing != FacingUser {
		t.Errorf("facing sequence = %v", dev.opens)
	}
	if st := c.Status(); st.Facing != FacingUser || st.State != StateCapturing {
		t.Errorf("unexpected status %+v", st)
	}

	if err := c.Flip(ctx); err != nil {
		t.Fatal(err)
	}
	if dev.opens[2].Facing != FacingEnvironment {
		t.Errorf("second flip facing = %s", dev.opens[2].Facing)
	}
	c.Close()
}

func TestClearInCameraModeReopens(t *testing.T) {
	dev := &fakeDevice{}
	c, sel := newTestComponent(dev)
	ctx := context.Background()

	if err := c.SetMode(ctx, ModeCamera); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Shutter(ctx); err != nil {
		t.Fatal(err)
	}
	if st := c.Status(); st.State != StatePreviewing {
		t.Fatalf("state after shutter = %s", st.State)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	st := c.Status()
	if st.State != StateCapturing || st.Preview != "" {
		t.Errorf("retake status %+v", st)
	}
	active, maxActive, _ := dev.counts()
	if active != 1 || maxActive != 1 {
		t.Errorf("active=%d max=%d", active, maxActive)
	}
	if sel.len() != 2 || sel.seen[1] != nil {
		t.Errorf("expected a clear notification, got %v", sel.seen)
	}
	c.Close()
}
