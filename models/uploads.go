package models

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	DefaultZipContentType = "application/zip"
	MetadataVersion       = "1.0"
	UploadSource          = "web-upload"
	NotificationFileType  = "zip"
	UnknownUserField      = "Unknown"
)

type FileSource interface {
	Open() (io.ReadCloser, error)
}

// BytesSource serves an in-memory file body.
type BytesSource []byte

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// FileHandle is a file the user picked, as the browser described it.
type FileHandle struct {
	Name         string
	Size         int64
	Type         string // declared MIME type, may be empty
	LastModified time.Time
	Source       FileSource
}

func (f FileHandle) Open() (io.ReadCloser, error) {
	if f.Source == nil {
		return nil, fmt.Errorf("file %q has no content", f.Name)
	}
	return f.Source.Open()
}

// ContentType falls back to the ZIP type when the browser sent none.
func (f FileHandle) ContentType() string {
	if f.Type == "" {
		return DefaultZipContentType
	}
	return f.Type
}

type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type FileAttributes struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	LastModified string `json:"lastModified"`
}

type UploadAttributes struct {
	UploadTime      string `json:"uploadTime"`
	UploadTimestamp int64  `json:"uploadTimestamp"`
	UserID          string `json:"userId"`
}

type UserAttributes struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	UserAgent string `json:"userAgent"`
	Timezone  string `json:"timezone"`
}

type SchemaAttributes struct {
	Version string `json:"version"`
	Source  string `json:"source"`
}

// UploadMetadata is the body of the marker object written next to every
// uploaded ZIP.
type UploadMetadata struct {
	File     FileAttributes   `json:"file"`
	Upload   UploadAttributes `json:"upload"`
	User     UserAttributes   `json:"user"`
	Metadata SchemaAttributes `json:"metadata"`
}

// ClientInfo is what the browser tells us about itself.
type ClientInfo struct {
	UserID    string
	UserAgent string
	Timezone  string
}

// UploadNotification is the processing queue message body.
type UploadNotification struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	MarkerKey  string `json:"markerKey"`
	UploadTime string `json:"uploadTime"`
	FileName   string `json:"fileName"`
	FileSize   int64  `json:"fileSize"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserEmail  string `json:"userEmail"`
}

type UploadResult struct {
	ObjectKey string         `json:"objectKey"`
	MarkerKey string         `json:"markerKey"`
	Location  string         `json:"location"`
	MessageID string         `json:"messageId,omitempty"`
	Metadata  UploadMetadata `json:"metadata"`
}

// ProgressFunc receives percent in [0,100] and a short status text.
type ProgressFunc func(percent int, message string)

type UploadStatus string

const (
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusUploaded  UploadStatus = "uploaded"
	UploadStatusMarked    UploadStatus = "marked"
	UploadStatusNotified  UploadStatus = "notified"
	UploadStatusFailed    UploadStatus = "failed"
)

func (s UploadStatus) String() string {
	return string(s)
}

func ParseUploadStatus(s string) (UploadStatus, error) {
	switch st := UploadStatus(strings.ToLower(s)); st {
	case UploadStatusUploading, UploadStatusUploaded, UploadStatusMarked, UploadStatusNotified, UploadStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown upload status %q", s)
}

// UploadRecord is the ledger row for one upload attempt.
type UploadRecord struct {
	ObjectKey string       `dynamodbav:"object_key" json:"objectKey"`  // S3 key of the ZIP
	MarkerKey string       `dynamodbav:"marker_key" json:"markerKey"`  // S3 key of the metadata marker
	UserEmail string       `dynamodbav:"user_email" json:"userEmail"`  // owner, GSI hash key
	UserName  string       `dynamodbav:"user_name" json:"userName"`    // display name
	UserID    string       `dynamodbav:"user_id" json:"userId"`        // generated client id
	FileName  string       `dynamodbav:"file_name" json:"fileName"`    // original file name
	FileSize  int64        `dynamodbav:"file_size" json:"fileSize"`    // bytes
	Status    UploadStatus `dynamodbav:"status" json:"status"`         // last step reached
	Error     string       `dynamodbav:"error,omitempty" json:"error"` // failure cause
	MessageID string       `dynamodbav:"message_id" json:"messageId"`  // SQS message id
	CreatedAt time.Time    `dynamodbav:"created_at" json:"createdAt"`  // upload start
	UpdatedAt time.Time    `dynamodbav:"updated_at" json:"updatedAt"`  // last status change
}

type UploadsResponse struct {
	Uploads []UploadRecord `json:"uploads"`
}
