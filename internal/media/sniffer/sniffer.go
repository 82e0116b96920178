package sniffer

import (
	"bytes"
	"errors"
	"mime"
	"strings"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWEBP = "image/webp"
)

var ErrUnknownType = errors.New("unknown media type")

// Detect inspects the leading bytes of an image and returns its MIME type.
func Detect(head []byte) (string, error) {
	switch {
	case isJPEG(head):
		return MIMEJPEG, nil
	case isPNG(head):
		return MIMEPNG, nil
	case isGIF(head):
		return MIMEGIF, nil
	case isWEBP(head):
		return MIMEWEBP, nil
	}
	return "", ErrUnknownType
}

// ContentType prefers the declared type and falls back to magic bytes when
// nothing usable was declared.
func ContentType(declared string, data []byte) string {
	if mediaType := Normalize(declared); mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	detected, err := Detect(data)
	if err != nil {
		return ""
	}
	return detected
}

// Normalize strips parameters and lower-cases a Content-Type value.
func Normalize(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if idx := strings.Index(contentType, ";"); idx >= 0 {
			contentType = contentType[:idx]
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// Accepted reports whether the analyzer takes this type.
func Accepted(contentType string) bool {
	switch Normalize(contentType) {
	case MIMEJPEG, MIMEPNG:
		return true
	}
	return false
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}
