package models

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// UploadSession is the uploader form state between file selection and a
// finished upload.
type UploadSession struct {
	File  *FileHandle
	Name  string
	Email string
}

// Valid reports whether the form may be submitted.
func (s UploadSession) Valid() bool {
	return s.File != nil &&
		strings.TrimSpace(s.Name) != "" &&
		strings.TrimSpace(s.Email) != "" &&
		IsValidEmail(s.Email)
}

func (s UploadSession) UserInfo() UserInfo {
	return UserInfo{
		Name:  strings.TrimSpace(s.Name),
		Email: strings.TrimSpace(s.Email),
	}
}

type StatusKind string

const (
	StatusNone    StatusKind = ""
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

type StatusBanner struct {
	Message string     `json:"message"`
	Kind    StatusKind `json:"kind"`
}

type FileInfoView struct {
	Name string `json:"name"`
	Size string `json:"size"`
	Type string `json:"type"`
}

type ProgressView struct {
	Visible bool   `json:"visible"`
	Percent int    `json:"percent"`
	Text    string `json:"text"`
}

// FormView is everything the uploader page renders.
type FormView struct {
	ID            string        `json:"id"`
	FileInfo      *FileInfoView `json:"fileInfo,omitempty"`
	ShowFileInfo  bool          `json:"showFileInfo"`
	ShowUserInfo  bool          `json:"showUserInfo"`
	UserName      string        `json:"userName"`
	UserEmail     string        `json:"userEmail"`
	SubmitVisible bool          `json:"submitVisible"`
	SubmitEnabled bool          `json:"submitEnabled"`
	Uploading     bool          `json:"uploading"`
	Progress      ProgressView  `json:"progress"`
	Status        StatusBanner  `json:"status"`
	LastResult    *UploadResult `json:"lastResult,omitempty"`
}
