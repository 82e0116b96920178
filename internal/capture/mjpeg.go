package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type MJPEGOptions struct {
	DialTimeout time.Duration
	MinWidth    int
	MinHeight   int
	HTTPClient  *http.Client
}

// MJPEGDevice reads multipart/x-mixed-replace streams, one URL per facing
// mode, as served by most IP and USB webcam bridges.
type MJPEGDevice struct {
	urls      map[Facing]string
	client    *http.Client
	minWidth  int
	minHeight int
	log       zerolog.Logger
}

func NewMJPEGDevice(urls map[string]string, opts MJPEGOptions, log zerolog.Logger) *MJPEGDevice {
	byFacing := make(map[Facing]string, len(urls))
	for facing, url := range urls {
		if url = strings.TrimSpace(url); url != "" {
			byFacing[Facing(strings.ToLower(facing))] = url
		}
	}

	client := opts.HTTPClient
	if client == nil {
		if opts.DialTimeout <= 0 {
			opts.DialTimeout = 5 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: opts.DialTimeout}).DialContext
		transport.ResponseHeaderTimeout = opts.DialTimeout
		client = &http.Client{Transport: transport}
	}
	if opts.MinWidth <= 0 {
		opts.MinWidth = 320
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = 240
	}

	return &MJPEGDevice{
		urls:      byFacing,
		client:    client,
		minWidth:  opts.MinWidth,
		minHeight: opts.MinHeight,
		log:       log.With().Str("component", "mjpeg").Logger(),
	}
}

func (d *MJPEGDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if len(d.urls) == 0 {
		return nil, cameraError(KindNotFound, errors.New("no camera configured"))
	}
	url, ok := d.urls[c.Facing]
	if !ok {
		return nil, cameraError(KindUnsupported, fmt.Errorf("no camera for facing mode %q", c.Facing))
	}

	// The stream outlives ctx; ctx only bounds the open.
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, cameraError(KindUnknown, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, cameraError(KindNotFound, err)
		}
		return nil, cameraError(KindUnknown, err)
	}

	if kind, bad := statusKind(resp.StatusCode); bad {
		resp.Body.Close()
		cancel()
		return nil, cameraError(kind, fmt.Errorf("camera responded %s", resp.Status))
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, cameraError(KindUnsupported, fmt.Errorf("not an mjpeg stream: %q", resp.Header.Get("Content-Type")))
	}

	s := &mjpegStream{
		body:   resp.Body,
		reader: multipart.NewReader(resp.Body, strings.TrimPrefix(params["boundary"], "--")),
		cancel: cancel,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}

	first, err := s.next()
	if err != nil {
		s.shutdown()
		return nil, cameraError(KindUnknown, fmt.Errorf("read first frame: %w", err))
	}
	if b := first.Bounds(); b.Dx() < d.minWidth || b.Dy() < d.minHeight {
		s.shutdown()
		return nil, cameraError(KindUnsupported, fmt.Errorf("frame %dx%d below %dx%d", b.Dx(), b.Dy(), d.minWidth, d.minHeight))
	}
	s.store(first, nil)

	go s.run()

	d.log.Debug().Str("url", url).Str("facing", string(c.Facing)).Msg("mjpeg stream opened")
	return s, nil
}

func statusKind(code int) (ErrorKind, bool) {
	switch {
	case code >= 200 && code < 300:
		return KindUnknown, false
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindPermissionDenied, true
	case code == http.StatusConflict, code == http.StatusLocked, code == http.StatusServiceUnavailable:
		return KindInUse, true
	case code == http.StatusNotFound:
		return KindNotFound, true
	default:
		return KindUnknown, true
	}
}

type mjpegStream struct {
	body   io.ReadCloser
	reader *multipart.Reader
	cancel context.CancelFunc

	mu     sync.RWMutex
	latest image.Image
	err    error

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

func (s *mjpegStream) next() (image.Image, error) {
	for {
		part, err := s.reader.NextPart()
		if err != nil {
			return nil, err
		}
		ct := part.Header.Get("Content-Type")
		if ct != "" && !strings.HasPrefix(ct, "image/jpeg") {
			part.Close()
			continue
		}
		img, err := jpeg.Decode(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		return img, nil
	}
}

func (s *mjpegStream) store(img image.Image, err error) {
	s.mu.Lock()
	if img != nil {
		s.latest = img
	}
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *mjpegStream) run() {
	defer close(s.done)
	for {
		img, err := s.next()
		if err != nil {
			s.store(nil, err)
			return
		}
		s.store(img, nil)
	}
}

func (s *mjpegStream) Frame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		if errors.Is(s.err, ErrStreamClosed) {
			return nil, ErrStreamClosed
		}
		return nil, fmt.Errorf("%w: %v", ErrStreamClosed, s.err)
	}
	return s.latest, nil
}

func (s *mjpegStream) shutdown() {
	s.cancel()
	_ = s.body.Close()
}

func (s *mjpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.store(nil, ErrStreamClosed)
		s.shutdown()
		<-s.done
	})
	return nil
}
