package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/health"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/pdf"
	"github.com/Yulian302/lfusys-services-studio/services"
	"github.com/Yulian302/lfusys-services-studio/store"
	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeUploads struct {
	mu     sync.Mutex
	user   models.UserInfo
	client models.ClientInfo
	body   string
	err    error
}

func (f *fakeUploads) UploadFile(ctx context.Context, file models.FileHandle, user models.UserInfo, client models.ClientInfo, onProgress models.ProgressFunc) (*models.UploadResult, error) {
	r, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.user, f.client, f.body = user, client, string(body)
	if f.err != nil {
		return nil, f.err
	}
	onProgress(100, "Notifying processing queue")
	return &models.UploadResult{ObjectKey: "uploads/1709294400000_" + file.Name, MessageID: "msg-1"}, nil
}

type fakeHistory struct{}

func (fakeHistory) GetUploads(ctx context.Context, email string) (*models.UploadsResponse, error) {
	if !models.IsValidEmail(email) {
		return nil, apperror.NewValidationError("a valid email is required")
	}
	return &models.UploadsResponse{Uploads: []models.UploadRecord{{ObjectKey: "uploads/a.zip", UserEmail: email}}}, nil
}

func (fakeHistory) GetDownloadUrl(ctx context.Context, key string) (string, error) {
	if key != "uploads/a.zip" {
		return "", apperror.ErrRecordNotFound
	}
	return "https://bucket.s3.amazonaws.com/uploads/a.zip?X-Amz-Signature=sig", nil
}

// pageRenderer renders two fixed pages for any input starting with "%PDF".
type pageRenderer struct{}

func (pageRenderer) Open(r io.Reader) (pdf.Document, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		return nil, errors.New("no pdf header")
	}
	return twoPages{}, nil
}

type twoPages struct{}

func (twoPages) NumPages() int { return 2 }
func (twoPages) Close() error  { return nil }

func (twoPages) RenderPage(index int) (models.Bitmap, error) {
	return models.Bitmap{Width: 612, Height: 792, PNG: []byte(fmt.Sprintf("png-%d", index+1))}, nil
}

type stubCheck struct {
	err error
}

func (s stubCheck) IsReady(context.Context) error { return s.err }
func (s stubCheck) Name() string                  { return "stub" }

type server struct {
	router  *gin.Engine
	uploads *fakeUploads
	monitor *health.Monitor
	clock   *clock.Mock
}

func newServer(t *testing.T, checkErr error) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	spool, err := store.NewSpool(t.TempDir())
	require.NoError(t, err)

	s := &server{
		uploads: &fakeUploads{},
		monitor: health.NewMonitor(time.Second, time.Second, stubCheck{err: checkErr}),
		clock:   clock.NewMock(),
	}
	s.clock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	l := logging.NewNopLogger()
	forms := services.NewFormServiceImpl(s.uploads, s.clock, l)
	decks := services.NewDeckServiceImpl(pageRenderer{}, store.NewBlobStore(spool), "video/mp4", "/api", s.clock, l)
	t.Cleanup(func() {
		forms.Shutdown()
		decks.Shutdown()
	})

	h := NewHttpHandler(forms, fakeHistory{}, decks, spool, s.monitor, 1<<20, s.clock, l)
	s.router = gin.New()
	h.Register(s.router)
	return s
}

func (s *server) do(t *testing.T, method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *server) doJSON(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, strings.NewReader(body), http.Header{"Content-Type": {"application/json"}})
}

func (s *server) upload(t *testing.T, path, filename, contentType, contents string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part := textproto.MIMEHeader{}
	part.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	part.Set("Content-Type", contentType)
	fw, err := w.CreatePart(part)
	require.NoError(t, err)
	_, err = fw.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("lastModified", "1709290800000"))
	require.NoError(t, w.Close())

	return s.do(t, http.MethodPut, path, &buf, http.Header{"Content-Type": {w.FormDataContentType()}})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestFormUploadFlow(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/forms", nil, http.Header{
		"User-Agent":   {"Mozilla/5.0"},
		headerTimezone: {"Europe/Kyiv"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	form := decode[models.FormView](t, rec)
	require.False(t, form.SubmitEnabled)
	base := "/api/forms/" + form.ID

	rec = s.upload(t, base+"/file", "notes.txt", "text/plain", "hello")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Please select a ZIP file", errorOf(t, rec))

	rec = s.upload(t, base+"/file", "data.ZIP", "application/zip", "PK\x03\x04")
	require.Equal(t, http.StatusOK, rec.Code)
	form = decode[models.FormView](t, rec)
	require.True(t, form.ShowFileInfo)
	require.Equal(t, "data.ZIP", form.FileInfo.Name)
	require.Equal(t, "4 Bytes", form.FileInfo.Size)
	require.False(t, form.SubmitEnabled)

	rec = s.doJSON(t, http.MethodPatch, base+"/fields", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[models.FormView](t, rec).SubmitEnabled)

	rec = s.do(t, http.MethodPost, base+"/submit", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Result models.UploadResult `json:"result"`
		Form   models.FormView     `json:"form"`
	}](t, rec)
	require.Equal(t, "msg-1", resp.Result.MessageID)
	require.Equal(t, "Upload successful! File is queued for processing.", resp.Form.Status.Message)

	require.Equal(t, models.UserInfo{Name: "Ada", Email: "ada@example.com"}, s.uploads.user)
	require.Equal(t, "Europe/Kyiv", s.uploads.client.Timezone)
	require.Equal(t, "Mozilla/5.0", s.uploads.client.UserAgent)
	require.True(t, strings.HasPrefix(s.uploads.client.UserID, "user_"))
	require.Equal(t, "PK\x03\x04", s.uploads.body)

	rec = s.do(t, http.MethodDelete, base, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFormSubmitErrors(t *testing.T) {
	s := newServer(t, nil)
	form := decode[models.FormView](t, s.do(t, http.MethodPost, "/api/forms", nil, nil))
	base := "/api/forms/" + form.ID

	rec := s.do(t, http.MethodPost, base+"/submit", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Please select a file first", errorOf(t, rec))

	require.Equal(t, http.StatusOK, s.upload(t, base+"/file", "a.zip", "application/zip", "zip").Code)
	rec = s.do(t, http.MethodPost, base+"/submit", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Please fill in all user information", errorOf(t, rec))

	s.doJSON(t, http.MethodPatch, base+"/fields", `{"name":"Ada","email":"ada@example.com"}`)
	s.uploads.err = &apperror.UploadError{Step: "notify", Err: errors.New("queue does not exist")}
	rec = s.do(t, http.MethodPost, base+"/submit", nil, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "Upload failed: queue does not exist", errorOf(t, rec))

	view := decode[models.FormView](t, s.do(t, http.MethodGet, base, nil, nil))
	require.True(t, view.SubmitEnabled)
	require.Equal(t, models.StatusError, view.Status.Kind)
}

func TestUploadHistoryRoutes(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/uploads?email=ada@example.com", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[models.UploadsResponse](t, rec).Uploads, 1)

	rec = s.do(t, http.MethodGet, "/api/uploads?email=nope", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/uploads/download?key=uploads/a.zip", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode[map[string]string](t, rec)["url"], "X-Amz-Signature")

	rec = s.do(t, http.MethodGet, "/api/uploads/download?key=uploads/b.zip", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/uploads/download", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func (s *server) postFile(t *testing.T, path, filename, contentType, contents string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part := textproto.MIMEHeader{}
	part.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	part.Set("Content-Type", contentType)
	fw, err := w.CreatePart(part)
	require.NoError(t, err)
	_, err = fw.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return s.do(t, http.MethodPost, path, &buf, http.Header{"Content-Type": {w.FormDataContentType()}})
}

func TestDeckEditingRoutes(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/decks", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[struct {
		ID      string         `json:"id"`
		Preview models.Preview `json:"preview"`
	}](t, rec)
	require.True(t, created.Preview.Empty)
	base := "/api/decks/" + created.ID

	rec = s.postFile(t, base+"/pdf", "deck.pdf", "application/pdf", "not a pdf")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "Error processing PDF file", errorOf(t, rec))

	rec = s.postFile(t, base+"/pdf", "deck.pdf", "text/plain", "%PDF-1.7")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.postFile(t, base+"/pdf", "deck.pdf", "application/pdf", "%PDF-1.7")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.postFile(t, base+"/video", "clip.mp4", "video/mp4", "0123456789")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.doJSON(t, http.MethodPost, base+"/moves", `{"oldIndex":2,"newIndex":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[models.Preview](t, rec)
	require.Len(t, preview.Items, 3)
	require.Equal(t, "VIDEO", preview.Items[0].Label)
	require.Equal(t, "deck.pdf - Page 1/2", preview.Items[1].Caption)

	rec = s.doJSON(t, http.MethodPost, base+"/moves", `{"oldIndex":0,"newIndex":9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.doJSON(t, http.MethodPost, base+"/moves", `{"newIndex":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, preview.Items[0].ContentURL, nil, http.Header{"Range": {"bytes=2-5"}})
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	require.Equal(t, "2345", rec.Body.String())

	rec = s.do(t, http.MethodGet, preview.Items[1].ContentURL, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, "png-1", rec.Body.String())

	videoID := preview.Items[0].ID
	rec = s.do(t, http.MethodDelete, base+"/slides/"+videoID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[models.Preview](t, rec).Items, 2)
	rec = s.do(t, http.MethodDelete, base+"/slides/"+videoID, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, base+"/slides", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, base+"/slides?confirm=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decode[struct {
		Removed int            `json:"removed"`
		Preview models.Preview `json:"preview"`
	}](t, rec)
	require.Equal(t, 2, cleared.Removed)
	require.True(t, cleared.Preview.Empty)

	rec = s.do(t, http.MethodGet, "/api/decks/missing/preview", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresentationRoutes(t *testing.T) {
	s := newServer(t, nil)
	id := decode[map[string]any](t, s.do(t, http.MethodPost, "/api/decks", nil, nil))["id"].(string)
	base := "/api/decks/" + id

	rec := s.do(t, http.MethodPost, base+"/presentation", nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Please add some slides first!", errorOf(t, rec))

	rec = s.doJSON(t, http.MethodPost, base+"/presentation/events", `{"type":"next"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusCreated, s.postFile(t, base+"/pdf", "deck.pdf", "application/pdf", "%PDF").Code)

	rec = s.doJSON(t, http.MethodPost, base+"/presentation", `{"fullscreenSupported":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[models.PresentationView](t, rec)
	require.Equal(t, models.ModePresenting, view.Mode)
	require.False(t, view.FullscreenRequested)
	require.Len(t, view.Sections, 2)

	rec = s.do(t, http.MethodGet, view.Sections[1].ContentURL, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "png-2", rec.Body.String())
	rec = s.do(t, http.MethodGet, base+"/presentation/sections/x/content", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(t, http.MethodPost, base+"/presentation/events", `{"type":"next"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decode[models.PresentationView](t, rec).ActiveIndex)

	rec = s.doJSON(t, http.MethodPost, base+"/presentation/events", `{"type":"slidechanged","index":7}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(t, http.MethodPost, base+"/presentation/events", `{"type":"wobble"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(t, http.MethodPost, base+"/presentation/events", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(t, http.MethodPost, base+"/presentation/events", `{"type":"keydown","key":"Escape"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.ModeEditing, decode[models.PresentationView](t, rec).Mode)

	rec = s.do(t, http.MethodPost, base+"/presentation", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[models.PresentationView](t, rec).FullscreenRequested)

	rec = s.do(t, http.MethodDelete, base+"/presentation", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[models.PresentationView](t, rec)
	require.Equal(t, models.ModeEditing, view.Mode)
	require.True(t, view.EditorVisible)
}

func TestOpsRoutes(t *testing.T) {
	s := newServer(t, errors.New("connection refused"))

	rec := s.do(t, http.MethodGet, "/healthcheck", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ok", decode[map[string]string](t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.monitor.CheckNow(context.Background())
	rec = s.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "connection refused", decode[health.Status](t, rec).Checks["stub"])

	ok := newServer(t, nil)
	ok.monitor.CheckNow(context.Background())
	require.Equal(t, http.StatusOK, ok.do(t, http.MethodGet, "/readyz", nil, nil).Code)
}

func TestStatusFor(t *testing.T) {
	for _, row := range []struct {
		err    error
		status int
	}{
		{apperror.NewValidationError("bad"), http.StatusBadRequest},
		{&apperror.DecodeError{Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{apperror.ErrEmptyDeck, http.StatusConflict},
		{apperror.ErrUploadRunning, http.StatusConflict},
		{fmt.Errorf("get: %w", apperror.ErrDeckNotFound), http.StatusNotFound},
		{apperror.ErrBlobRevoked, http.StatusNotFound},
		{&apperror.InitError{Err: errors.New("x")}, http.StatusServiceUnavailable},
		{&apperror.UploadError{Step: "upload", Err: errors.New("x")}, http.StatusBadGateway},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	} {
		require.Equal(t, row.status, statusFor(row.err), row.err.Error())
	}
}
