package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"imageeditor/internal/config"
	"imageeditor/internal/domain"
	"imageeditor/internal/redactor"
	"imageeditor/internal/service"
	"imageeditor/pkg/utils"
)

// multipart framing overhead allowed on top of the image itself
const formOverhead = 1 << 20

var errNoImage = errors.New("no image file provided")

type Handler struct {
	service service.ImageService
	cfg     *config.Config
	log     *zap.Logger
}

func NewHandler(service service.ImageService, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		cfg:     cfg,
		log:     log.Named("handler"),
	}
}

type upload struct {
	data        []byte
	filename    string
	contentType string
}

// readUpload pulls the "image" file out of a multipart form, enforcing the
// configured size and extension limits.
func (h *Handler) readUpload(c *gin.Context) (*upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.App.MaxUploadSize+formOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrImageTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errNoImage, err)
	}
	if file.Size > h.cfg.App.MaxUploadSize {
		return nil, domain.ErrImageTooLarge
	}
	if !utils.IsAllowed(file.Filename, h.cfg.App.AllowedFormats) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, file.Filename)
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = utils.ContentType(file.Filename)
	}

	return &upload{data: data, filename: file.Filename, contentType: contentType}, nil
}

func (h *Handler) bindParams(c *gin.Context) (domain.EditorParams, bool) {
	params, err := domain.ParseParams(c.Request.URL.RawQuery)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return params, false
	}
	return params, true
}

// RedactImage runs the editor on an uploaded image and answers with a
// multipart body holding every rendered part and the statistics.
func (h *Handler) RedactImage(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}

	up, err := h.readUpload(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.log.Info("Processing file",
		zap.String("filename", up.filename),
		zap.Int("size", len(up.data)))

	result, err := h.service.Redact(c.Request.Context(), up.data, up.filename, params)
	if err != nil {
		h.writeError(c, err)
		return
	}

	stats, err := json.Marshal(result.Statistics)
	if err != nil {
		h.writeError(c, err)
		return
	}

	writer := multipart.NewWriter(c.Writer)
	c.Header("Content-Type", writer.FormDataContentType())
	c.Status(http.StatusOK)

	if err := writeRedaction(writer, up, result, stats, c.Request.URL.RawQuery); err != nil {
		// Headers are gone by now; all we can do is log.
		h.log.Error("Failed to write multipart response", zap.Error(err))
	}
}

func writeRedaction(writer *multipart.Writer, up *upload, result *domain.RedactResult, stats []byte, rawQuery string) error {
	for _, part := range result.Parts {
		w, err := writer.CreateFormFile(part.Name, utils.OutputName(up.filename, part.Name))
		if err != nil {
			return err
		}
		if _, err := w.Write(part.Data); err != nil {
			return err
		}
	}

	fields := []struct{ name, value string }{
		{"statistics", string(stats)},
		{"original_filename", up.filename},
		{"file_size", strconv.Itoa(len(up.data))},
		{"image_width", strconv.Itoa(result.Edit.Width)},
		{"image_height", strconv.Itoa(result.Edit.Height)},
		{"processing_parameters", rawQuery},
		{"applied_steps", strings.Join(result.Edit.Steps, ",")},
		{"edit_id", result.Edit.ID},
		{"status", "success"},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return err
		}
	}

	return writer.Close()
}

func (h *Handler) UploadImage(c *gin.Context) {
	up, err := h.readUpload(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	image, err := h.service.UploadImage(c.Request.Context(), up.data, up.filename, up.contentType)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Image uploaded successfully",
		"image":   image,
	})
}

func (h *Handler) ListImages(c *gin.Context) {
	images, err := h.service.ListImages(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (h *Handler) RedactStored(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}

	stored, err := h.service.RedactStored(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stored)
}

func (h *Handler) GetPart(c *gin.Context) {
	body, contentType, err := h.service.OpenPart(c.Request.Context(), c.Param("id"), c.Param("part"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}

func (h *Handler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	edits, total, err := h.service.History(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"edits": edits, "total": total})
}

func (h *Handler) DefaultParams(c *gin.Context) {
	c.JSON(http.StatusOK, domain.DefaultEditorParams())
}

// Steps lists pipeline stages in the order they run.
func (h *Handler) Steps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"steps": redactor.Steps()})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, domain.ErrImageTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		status, msg = http.StatusUnsupportedMediaType, "Unsupported image format"
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrStorageDisabled):
		status, msg = http.StatusServiceUnavailable, "Image storage is disabled"
	case errors.Is(err, domain.ErrInvalidParameters):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, errNoImage):
		status, msg = http.StatusBadRequest, "No image file provided"
	}

	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		// no-op unless sentry.Init ran
		sentry.CaptureException(err)
	} else {
		h.log.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	c.JSON(status, gin.H{"error": msg})
}
