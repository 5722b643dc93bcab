package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/benbjohnson/clock"
)

const (
	ResetDelay = 3 * time.Second

	msgSelectZip    = "Please select a ZIP file"
	msgSelectFirst  = "Please select a file first"
	msgFillUserInfo = "Please fill in all user information"
	msgUploadOK     = "Upload successful! File is queued for processing."
)

// releaser is implemented by file sources that hold local resources.
type releaser interface {
	Release() error
}

// FormController owns one uploader form. All mutations, including the
// delayed reset, happen under mu.
type FormController struct {
	id      string
	uploads UploadService
	client  models.ClientInfo
	clock   clock.Clock
	logger  logging.Logger

	mu           sync.Mutex
	session      models.UploadSession
	fileInfo     *models.FileInfoView
	showSections bool
	showSubmit   bool
	uploading    bool
	closed       bool
	progress     models.ProgressView
	status       models.StatusBanner
	lastResult   *models.UploadResult
	resetTimer   *clock.Timer
}

func NewFormController(id string, uploads UploadService, client models.ClientInfo, c clock.Clock, l logging.Logger) *FormController {
	return &FormController{
		id:      id,
		uploads: uploads,
		client:  client,
		clock:   c,
		logger:  l.With("form_id", id),
	}
}

func (f *FormController) ID() string {
	return f.id
}

// SelectFile accepts only names ending in .zip. A rejected file leaves
// the form untouched apart from the error banner.
func (f *FormController) SelectFile(file models.FileHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploading {
		return apperror.ErrUploadRunning
	}
	if !strings.HasSuffix(strings.ToLower(file.Name), ".zip") {
		f.logger.Info("rejected non-zip file", "file", file.Name)
		f.setStatus(msgSelectZip, models.StatusError)
		release(file, f.logger)
		return apperror.NewValidationError(msgSelectZip)
	}

	if f.session.File != nil {
		release(*f.session.File, f.logger)
	}
	f.session.File = &file
	f.fileInfo = &models.FileInfoView{
		Name: file.Name,
		Size: FormatFileSize(file.Size),
		Type: file.ContentType(),
	}
	f.showSections = true
	f.validateLocked()
	f.clearStatus()
	return nil
}

func (f *FormController) EditName(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.Name = v
	f.validateLocked()
}

func (f *FormController) EditEmail(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.Email = v
	f.validateLocked()
}

// Submit runs one upload. The form lock is released while the transport
// runs so progress and views stay live.
func (f *FormController) Submit(ctx context.Context) (*models.UploadResult, error) {
	f.mu.Lock()
	if f.uploading {
		f.mu.Unlock()
		return nil, apperror.ErrUploadRunning
	}
	if f.session.File == nil {
		f.setStatus(msgSelectFirst, models.StatusError)
		f.mu.Unlock()
		return nil, apperror.NewValidationError(msgSelectFirst)
	}
	if !f.session.Valid() {
		f.setStatus(msgFillUserInfo, models.StatusError)
		f.mu.Unlock()
		return nil, apperror.NewValidationError(msgFillUserInfo)
	}

	file := *f.session.File
	user := f.session.UserInfo()
	f.uploading = true
	f.progress.Visible = true
	f.clearStatus()
	f.mu.Unlock()

	res, err := f.uploads.UploadFile(ctx, file, user, f.client, f.updateProgress)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploading = false
	if f.closed {
		f.dropFileLocked()
	}

	if err != nil {
		f.logger.Error("upload error", "file", file.Name, "error", err)
		f.setStatus(failureMessage(err), models.StatusError)
		return nil, err
	}

	f.lastResult = res
	f.setStatus(msgUploadOK, models.StatusSuccess)
	if !f.closed {
		f.scheduleResetLocked()
	}
	return res, nil
}

func failureMessage(err error) string {
	var upErr *apperror.UploadError
	if errors.As(err, &upErr) {
		return upErr.Error()
	}
	return fmt.Sprintf("Upload failed: %s", err)
}

func (f *FormController) updateProgress(percent int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress.Percent = percent
	f.progress.Text = progressText(percent, message)
}

func progressText(percent int, message string) string {
	if message == "" {
		return fmt.Sprintf("%d%%", percent)
	}
	return fmt.Sprintf("%d%% - %s", percent, message)
}

func (f *FormController) scheduleResetLocked() {
	if f.resetTimer != nil {
		f.resetTimer.Stop()
	}
	f.resetTimer = f.clock.AfterFunc(ResetDelay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.uploading {
			return
		}
		f.resetLocked()
	})
}

// Reset clears the form. It is refused while an upload runs.
func (f *FormController) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploading {
		return apperror.ErrUploadRunning
	}
	if f.resetTimer != nil {
		f.resetTimer.Stop()
		f.resetTimer = nil
	}
	f.resetLocked()
	return nil
}

func (f *FormController) resetLocked() {
	if f.session.File != nil {
		release(*f.session.File, f.logger)
	}
	f.session = models.UploadSession{}
	f.fileInfo = nil
	f.showSections = false
	f.showSubmit = false
	f.progress = models.ProgressView{Text: progressText(0, "")}
	f.clearStatus()
}

// Close drops the timer and any spooled file. A file still being uploaded
// is dropped when that upload returns.
func (f *FormController) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.resetTimer != nil {
		f.resetTimer.Stop()
	}
	if !f.uploading {
		f.dropFileLocked()
	}
}

func (f *FormController) dropFileLocked() {
	if f.session.File != nil {
		release(*f.session.File, f.logger)
		f.session.File = nil
	}
}

func (f *FormController) View() models.FormView {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := models.FormView{
		ID:            f.id,
		ShowFileInfo:  f.showSections,
		ShowUserInfo:  f.showSections,
		UserName:      f.session.Name,
		UserEmail:     f.session.Email,
		SubmitVisible: f.showSubmit,
		SubmitEnabled: f.session.Valid() && !f.uploading,
		Uploading:     f.uploading,
		Progress:      f.progress,
		Status:        f.status,
		LastResult:    f.lastResult,
	}
	if f.fileInfo != nil {
		fi := *f.fileInfo
		view.FileInfo = &fi
	}
	if view.Progress.Text == "" {
		view.Progress.Text = progressText(view.Progress.Percent, "")
	}
	return view
}

// validateLocked reveals the submit action the first time the form is
// valid. Enabled state is derived in View.
func (f *FormController) validateLocked() {
	if f.session.Valid() {
		f.showSubmit = true
	}
}

func (f *FormController) setStatus(msg string, kind models.StatusKind) {
	f.status = models.StatusBanner{Message: msg, Kind: kind}
}

func (f *FormController) clearStatus() {
	f.status = models.StatusBanner{}
}

func release(file models.FileHandle, l logging.Logger) {
	r, ok := file.Source.(releaser)
	if !ok {
		return
	}
	if err := r.Release(); err != nil {
		l.Warn("failed to release file", "file", file.Name, "error", err)
	}
}
