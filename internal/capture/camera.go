// Package capture holds the image acquisition state machine: file uploads,
// a live camera stream and the preview awaiting analysis.
package capture

import (
	"context"
	"errors"
	"image"
)

type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

func (f Facing) Flip() Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// Constraints describe the requested stream. Width and Height are ideal
// values; devices may deliver something else. Audio is never requested.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

type Stream interface {
	// Frame returns the most recent frame.
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindPermissionDenied
	KindInUse
	KindUnsupported
)

func (k ErrorKind) Message() string {
	switch k {
	case KindNotFound:
		return "No camera found on this device."
	case KindPermissionDenied:
		return "Camera permission denied. Please allow camera access and try again."
	case KindInUse:
		return "Camera is already in use by another application."
	case KindUnsupported:
		return "Camera does not support the requested settings."
	default:
		return "Unable to access the camera. Please try again."
	}
}

type CameraError struct {
	Kind ErrorKind
	Err  error
}

func (e *CameraError) Error() string {
	if e.Err != nil {
		return e.Kind.Message() + " (" + e.Err.Error() + ")"
	}
	return e.Kind.Message()
}

func (e *CameraError) Unwrap() error { return e.Err }

// Message is the text shown to the user.
func (e *CameraError) Message() string { return e.Kind.Message() }

var (
	ErrNoStream     = errors.New("camera stream not active")
	ErrStreamClosed = errors.New("camera stream closed")
)

func cameraError(kind ErrorKind, err error) *CameraError {
	return &CameraError{Kind: kind, Err: err}
}

func asCameraError(err error) *CameraError {
	var camErr *CameraError
	if errors.As(err, &camErr) {
		return camErr
	}
	return cameraError(KindUnknown, err)
}
