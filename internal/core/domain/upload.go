package domain

import "io"

const (
	PDFMimeType          = "application/pdf"
	DefaultMaxUploadSize = 50 * 1024 * 1024
)

type UploadPhase string

const (
	UploadIdle      UploadPhase = "idle"
	UploadUploading UploadPhase = "uploading"
	UploadSucceeded UploadPhase = "succeeded"
	UploadFailed    UploadPhase = "failed"
)

// FileRef is a file picked by the user. Open must return a fresh reader on
// every call.
type FileRef struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error) `json:"-"`
}

type UploadState struct {
	File       *FileRef    `json:"file,omitempty"`
	Pages      int         `json:"pages,omitempty"`
	Progress   int         `json:"progress"`
	Phase      UploadPhase `json:"phase"`
	DocumentID string      `json:"document_id,omitempty"`
	Error      string      `json:"error,omitempty"`
}
