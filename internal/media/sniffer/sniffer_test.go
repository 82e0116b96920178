package sniffer

import "testing"

func TestContentType(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}
	gif := []byte("GIF89a....")

	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{"declared wins", "image/png; charset=binary", jpeg, MIMEPNG},
		{"sniffed when empty", "", jpeg, MIMEJPEG},
		{"sniffed when octet-stream", "application/octet-stream", gif, MIMEGIF},
		{"unknown", "", []byte("hello"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentType(tt.declared, tt.data); got != tt.want {
				t.Errorf("ContentType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAccepted(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "IMAGE/PNG", "image/jpeg; q=1"} {
		if !Accepted(ct) {
			t.Errorf("%q should be accepted", ct)
		}
	}
	for _, ct := range []string{"image/gif", "image/webp", "", "text/plain"} {
		if Accepted(ct) {
			t.Errorf("%q should be rejected", ct)
		}
	}
}
