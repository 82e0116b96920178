package models

import "time"

type ImageSource string

const (
	ImageSourceUpload ImageSource = "upload"
	ImageSourceCamera ImageSource = "camera"
)

// CapturedImage is the unit of work submitted for analysis.
type CapturedImage struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	Preview     string // data URL
	Source      ImageSource
	CreatedAt   time.Time
}
