package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrFormNotFound   = errors.New("form not found")
	ErrDeckNotFound   = errors.New("deck not found")
	ErrSlideNotFound  = errors.New("slide not found")
	ErrRecordNotFound = errors.New("upload record not found")
	ErrEmptyDeck      = errors.New("Please add some slides first!")
	ErrBlobRevoked    = errors.New("blob already revoked")
	ErrNotPresenting  = errors.New("presentation is not running")
	ErrUploadRunning  = errors.New("an upload is already in progress")
)

// ValidationError is bad user input. Always recoverable by correcting it.
type ValidationError struct {
	Msg string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// UploadError wraps whichever transport step failed during an upload.
type UploadError struct {
	Step string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("Upload failed: %s", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// InitError is the startup identity exchange failure. Every later upload
// reports it instead of attempting the transport.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("AWS initialization failed: %s", e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// DecodeError is a PDF that could not be parsed or rendered.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	return "Error processing PDF file"
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func IsTransport(err error) bool {
	var ue *UploadError
	var ie *InitError
	return errors.As(err, &ue) || errors.As(err, &ie)
}
