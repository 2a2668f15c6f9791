package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"imageeditor/internal/config"
	"imageeditor/internal/domain"
)

type fakeService struct {
	params     domain.EditorParams
	calls      int
	err        error
	historyArg int
}

func (f *fakeService) Redact(_ context.Context, data []byte, filename string, params domain.EditorParams) (*domain.RedactResult, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	parts := make([]domain.RenderedPart, len(domain.Parts))
	for i, name := range domain.Parts {
		parts[i] = domain.RenderedPart{Name: name, Data: []byte("png:" + name)}
	}
	return &domain.RedactResult{
		Edit:  domain.Edit{ID: "edit-1", Filename: filename, Width: 4, Height: 3, Steps: []string{"negative"}},
		Parts: parts,
		Statistics: domain.ImageStatistics{Brightness: domain.BrightnessHistogram{
			Gray: []int{12},
		}},
	}, nil
}

func (f *fakeService) UploadImage(_ context.Context, data []byte, filename, contentType string) (*domain.Image, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Image{ID: "img-1", OriginalName: filename, Size: int64(len(data)), ContentType: contentType}, nil
}

func (f *fakeService) ListImages(context.Context) ([]domain.Image, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Image{{ID: "img-1"}}, nil
}

func (f *fakeService) RedactStored(_ context.Context, id string, params domain.EditorParams) (*domain.StoredRedaction, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StoredRedaction{Edit: domain.Edit{ID: "edit-2", ImageID: id}}, nil
}

func (f *fakeService) OpenPart(_ context.Context, id, part string) (io.ReadCloser, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return io.NopCloser(strings.NewReader(id + "/" + part)), "image/png", nil
}

func (f *fakeService) History(_ context.Context, limit int) ([]domain.Edit, int, error) {
	f.calls++
	f.historyArg = limit
	return []domain.Edit{}, 0, f.err
}

func newTestRouter(svc *fakeService, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{App: config.AppConfig{
		MaxUploadSize:  maxUpload,
		AllowedFormats: []string{".png", ".jpg"},
	}}
	h := NewHandler(svc, cfg, zap.NewNop())

	r := gin.New()
	r.GET("/health", h.HealthCheck)
	r.POST("/api/v1/image/redactor", h.RedactImage)
	r.GET("/api/v1/params/defaults", h.DefaultParams)
	r.GET("/api/v1/params/steps", h.Steps)
	r.POST("/api/v1/images", h.UploadImage)
	r.GET("/api/v1/images", h.ListImages)
	r.POST("/api/v1/images/:id/redact", h.RedactStored)
	r.GET("/api/v1/images/:id/parts/:part", h.GetPart)
	r.GET("/api/v1/history", h.History)
	return r
}

func uploadRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("other", "x"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRedactImageMultipartResponse(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, 1<<20)

	req := uploadRequest(t, "/api/v1/image/redactor?Negative=true&Order=BGR", "photo.png", []byte("data"))
	rec := serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, svc.params.Negative)
	assert.Equal(t, "BGR", svc.params.Order)
	assert.Equal(t, 100, svc.params.RedBrightness)

	mediaType, mp, err := mime.ParseMediaType(rec.Header().Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(rec.Body, mp["boundary"])
	var files []string
	fields := map[string]string{}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		if part.FileName() != "" {
			files = append(files, part.FormName())
			assert.Equal(t, "png:"+part.FormName(), string(data))
			assert.Equal(t, part.FormName()+"_photo.png", part.FileName())
			continue
		}
		fields[part.FormName()] = string(data)
	}

	assert.Equal(t, domain.Parts, files)
	assert.Equal(t, "success", fields["status"])
	assert.Equal(t, "photo.png", fields["original_filename"])
	assert.Equal(t, "4", fields["file_size"])
	assert.Equal(t, "4", fields["image_width"])
	assert.Equal(t, "3", fields["image_height"])
	assert.Equal(t, "negative", fields["applied_steps"])
	assert.Equal(t, "Negative=true&Order=BGR", fields["processing_parameters"])

	var stats domain.ImageStatistics
	require.NoError(t, json.Unmarshal([]byte(fields["statistics"]), &stats))
	assert.Equal(t, []int{12}, stats.Brightness.Gray)
}

func TestRedactImageRejects(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		filename string
		data     []byte
		code     int
	}{
		{"bad order", "/api/v1/image/redactor?Order=XYZ", "a.png", []byte("x"), http.StatusBadRequest},
		{"brightness out of range", "/api/v1/image/redactor?RedBrightness=300", "a.png", []byte("x"), http.StatusBadRequest},
		{"missing file", "/api/v1/image/redactor", "", nil, http.StatusBadRequest},
		{"unsupported extension", "/api/v1/image/redactor", "a.txt", []byte("x"), http.StatusUnsupportedMediaType},
		{"infinite unsharp masking", "/api/v1/image/redactor?UnsharpMasking=Inf", "a.png", []byte("x"), http.StatusBadRequest},
		{"infinite power clip", "/api/v1/image/redactor?PowerClip=Inf", "a.png", []byte("x"), http.StatusBadRequest},
		{"too large", "/api/v1/image/redactor", "a.png", bytes.Repeat([]byte("x"), 100), http.StatusRequestEntityTooLarge},
		{"body over read limit", "/api/v1/image/redactor", "a.png", bytes.Repeat([]byte("x"), 3<<20), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			r := newTestRouter(svc, 50)

			rec := serve(r, uploadRequest(t, tt.target, tt.filename, tt.data))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Zero(t, svc.calls)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestRedactImageEmptyOrderAndFilter(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, uploadRequest(t, "/api/v1/image/redactor?Order=&Filter=", "a.png", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "RGB", svc.params.Order)
	assert.Equal(t, domain.FilterNone, svc.params.Filter)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrStorageDisabled, http.StatusServiceUnavailable},
		{domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{domain.ErrImageTooLarge, http.StatusRequestEntityTooLarge},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := newTestRouter(&fakeService{err: tt.err}, 1<<20)

			rec := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/images/abc/redact", nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	r := newTestRouter(&fakeService{err: io.ErrUnexpectedEOF}, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/images", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "unexpected EOF")
}

func TestUploadImage(t *testing.T) {
	r := newTestRouter(&fakeService{}, 1<<20)

	rec := serve(r, uploadRequest(t, "/api/v1/images", "cat.jpg", []byte("jpeg")))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Image domain.Image `json:"image"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cat.jpg", resp.Image.OriginalName)
	assert.Equal(t, "image/jpeg", resp.Image.ContentType)
}

func TestRedactStoredBindsQuery(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/images/img-9/redact?Filter=median&FilterSize=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.FilterMedian, svc.params.Filter)
	assert.Equal(t, 5, svc.params.FilterSize)
	assert.Contains(t, rec.Body.String(), `"image_id":"img-9"`)
}

func TestGetPartStreams(t *testing.T) {
	r := newTestRouter(&fakeService{}, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/images/img-1/parts/gray_channel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "img-1/gray_channel", rec.Body.String())
}

func TestHistoryLimit(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.historyArg)
	assert.JSONEq(t, `{"edits":[],"total":0}`, rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDefaultParamsAndHealth(t *testing.T) {
	r := newTestRouter(&fakeService{}, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/params/defaults", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var params domain.EditorParams
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &params))
	assert.Equal(t, domain.DefaultEditorParams(), params)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/params/steps", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var steps struct {
		Steps []string `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &steps))
	assert.Equal(t, "order", steps.Steps[0])
	assert.Equal(t, "constant_slice", steps.Steps[len(steps.Steps)-1])

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())
}
