package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"imageeditor/internal/config"
	"imageeditor/internal/domain"
	"imageeditor/internal/imatrix"
	"imageeditor/internal/metrics"
	"imageeditor/internal/processors"
	"imageeditor/internal/redactor"
	"imageeditor/internal/repository"
	"imageeditor/internal/statistics"
	"imageeditor/pkg/utils"
)

const (
	originalsPrefix = "images/"
	redactedPrefix  = "redacted/"
	partOriginal    = "original"

	// user metadata key holding the query-escaped upload filename
	metaOriginalName = "original-name"
	// concurrent HEAD requests while listing
	statConcurrency = 8
)

type ImageService interface {
	Redact(ctx context.Context, data []byte, filename string, params domain.EditorParams) (*domain.RedactResult, error)
	UploadImage(ctx context.Context, data []byte, filename, contentType string) (*domain.Image, error)
	ListImages(ctx context.Context) ([]domain.Image, error)
	RedactStored(ctx context.Context, id string, params domain.EditorParams) (*domain.StoredRedaction, error)
	OpenPart(ctx context.Context, id, part string) (io.ReadCloser, string, error)
	History(ctx context.Context, limit int) ([]domain.Edit, int, error)
}

type imageService struct {
	s3Repo  repository.S3Repository
	history repository.HistoryRepository
	cfg     *config.Config
	log     *zap.Logger
	proc    *utils.ImageProcessor
	now     func() time.Time
}

// NewImageService wires the pipeline to optional storage. s3Repo and history
// may be nil, which disables stored images and the edit log respectively.
func NewImageService(s3Repo repository.S3Repository, history repository.HistoryRepository, cfg *config.Config, log *zap.Logger) ImageService {
	return &imageService{
		s3Repo:  s3Repo,
		history: history,
		cfg:     cfg,
		log:     log.Named("service"),
		proc:    utils.NewImageProcessor(log, cfg.App.MaxPixels),
		now:     time.Now,
	}
}

func (s *imageService) Redact(ctx context.Context, data []byte, filename string, params domain.EditorParams) (*domain.RedactResult, error) {
	src, _, err := s.proc.Decode(data)
	if err != nil {
		metrics.RedactionFailed("decode")
		return nil, err
	}
	return s.render(ctx, imatrix.FromImage(src), "", filename, params)
}

// render runs the pipeline, the channel previews and the statistics
// concurrently, then encodes every part.
func (s *imageService) render(ctx context.Context, original imatrix.Image, imageID, filename string, params domain.EditorParams) (*domain.RedactResult, error) {
	start := s.now()

	var (
		changes, redacted imatrix.Image
		steps             []string
		channels          = make([]imatrix.Image, 4)
		stats             domain.ImageStatistics
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		changes, redacted, steps, err = redactor.Redact(gctx, original, params)
		return err
	})
	for i, ch := range []domain.ChannelType{domain.ChannelRed, domain.ChannelGreen, domain.ChannelBlue, domain.ChannelGray} {
		g.Go(func() error {
			channels[i] = processors.Channel(original, ch)
			return nil
		})
	}
	g.Go(func() error {
		stats = statistics.GetStatistics(original)
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.RedactionFailed("pipeline")
		return nil, fmt.Errorf("failed to redact %s: %w", filename, err)
	}

	images := []imatrix.Image{redacted, channels[0], channels[1], channels[2], channels[3], changes}
	parts := make([]domain.RenderedPart, len(images))
	eg, ectx := errgroup.WithContext(ctx)
	for i, img := range images {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			data, err := s.proc.EncodePNG(img.ToRGBA())
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", domain.Parts[i], err)
			}
			parts[i] = domain.RenderedPart{Name: domain.Parts[i], Data: data}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		metrics.RedactionFailed("encode")
		return nil, err
	}

	elapsed := s.now().Sub(start)
	edit := domain.Edit{
		ID:         uuid.New().String(),
		ImageID:    imageID,
		Filename:   filename,
		Parameters: params.Query(),
		Steps:      steps,
		Width:      original.Width,
		Height:     original.Height,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  start.UTC(),
	}
	if steps == nil {
		edit.Steps = []string{}
	}

	metrics.ObserveRedaction(elapsed, original.Width*original.Height, steps)
	s.recordEdit(ctx, edit)

	s.log.Info("Image redacted",
		zap.String("edit_id", edit.ID),
		zap.String("filename", filename),
		zap.Int("width", original.Width),
		zap.Int("height", original.Height),
		zap.Strings("steps", edit.Steps),
		zap.Duration("duration", elapsed))

	return &domain.RedactResult{Edit: edit, Parts: parts, Statistics: stats}, nil
}

func (s *imageService) recordEdit(ctx context.Context, edit domain.Edit) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, edit); err != nil {
		s.log.Warn("Failed to record edit", zap.String("edit_id", edit.ID), zap.Error(err))
	}
}

func (s *imageService) UploadImage(ctx context.Context, data []byte, filename, contentType string) (*domain.Image, error) {
	if s.s3Repo == nil {
		return nil, domain.ErrStorageDisabled
	}

	src, _, err := s.proc.Decode(data)
	if err != nil {
		return nil, err
	}

	imageID := uuid.New().String()
	key := originalsPrefix + imageID

	meta := map[string]string{metaOriginalName: url.QueryEscape(filename)}
	if err := s.s3Repo.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), contentType, meta); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", filename, err)
	}

	image := &domain.Image{
		ID:           imageID,
		OriginalName: filename,
		StoragePath:  key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		UploadedAt:   s.now().UTC(),
		Width:        src.Bounds().Dx(),
		Height:       src.Bounds().Dy(),
	}

	s.log.Info("Image uploaded successfully",
		zap.String("id", imageID),
		zap.String("filename", filename),
		zap.Int64("size", image.Size))

	return image, nil
}

func (s *imageService) ListImages(ctx context.Context) ([]domain.Image, error) {
	if s.s3Repo == nil {
		return nil, domain.ErrStorageDisabled
	}

	originals, err := s.s3Repo.ListFiles(ctx, originalsPrefix)
	if err != nil {
		return nil, err
	}
	processed, err := s.s3Repo.ListFiles(ctx, redactedPrefix)
	if err != nil {
		return nil, err
	}

	done := make(map[string]bool, len(processed))
	for _, obj := range processed {
		id, _, _ := strings.Cut(strings.TrimPrefix(obj.Key, redactedPrefix), "/")
		done[id] = true
	}

	images := make([]domain.Image, len(originals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	for i, obj := range originals {
		id := path.Base(obj.Key)
		images[i] = domain.Image{
			ID:           id,
			OriginalName: id,
			StoragePath:  obj.Key,
			Size:         obj.Size,
			UploadedAt:   obj.LastModified,
			Processed:    done[id],
		}
		g.Go(func() error {
			info, err := s.s3Repo.Stat(gctx, obj.Key)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			images[i].OriginalName = originalName(info, id)
			images[i].ContentType = info.ContentType
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(images, func(i, j int) bool { return images[i].UploadedAt.After(images[j].UploadedAt) })

	return images, nil
}

// originalName reads the upload filename back from object metadata. Objects
// stored without it fall back to their id.
func originalName(info *repository.ObjectInfo, id string) string {
	raw, ok := info.Metadata[metaOriginalName]
	if !ok || raw == "" {
		return id
	}
	name, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return name
}

func (s *imageService) RedactStored(ctx context.Context, id string, params domain.EditorParams) (*domain.StoredRedaction, error) {
	if s.s3Repo == nil {
		return nil, domain.ErrStorageDisabled
	}
	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("image %q: %w", id, domain.ErrNotFound)
	}

	info, err := s.s3Repo.Stat(ctx, originalsPrefix+id)
	if err != nil {
		return nil, err
	}

	reader, err := s.s3Repo.DownloadFile(ctx, originalsPrefix+id)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(reader, s.cfg.App.MaxUploadSize+1))
	reader.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	if int64(len(data)) > s.cfg.App.MaxUploadSize {
		return nil, domain.ErrImageTooLarge
	}

	src, _, err := s.proc.Decode(data)
	if err != nil {
		return nil, err
	}

	result, err := s.render(ctx, imatrix.FromImage(src), id, originalName(info, id), params)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string, len(result.Parts))
	channels := make([]domain.ChannelImage, 0, len(domain.PartChannels))
	for _, part := range result.Parts {
		key := partKey(id, part.Name)
		if err := s.s3Repo.UploadFile(ctx, key, bytes.NewReader(part.Data), int64(len(part.Data)), "image/png", nil); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", part.Name, err)
		}
		keys[part.Name] = key

		if ch, ok := domain.PartChannels[part.Name]; ok {
			channels = append(channels, domain.ChannelImage{
				Type:      ch,
				URL:       PartURL(id, part.Name),
				Histogram: histogramFor(result.Statistics.Brightness, ch),
			})
		}
	}

	s.log.Info("Stored image redacted",
		zap.String("id", id),
		zap.Int("parts", len(keys)))

	return &domain.StoredRedaction{
		Edit:       result.Edit,
		Keys:       keys,
		Channels:   channels,
		Statistics: result.Statistics,
	}, nil
}

func partKey(id, part string) string {
	return redactedPrefix + id + "/" + part + ".png"
}

// PartURL is the API path serving one part of a stored image.
func PartURL(id, part string) string {
	return "/api/v1/images/" + id + "/parts/" + part
}

// histogramFor returns the source histogram behind a channel preview; the
// changes map has none.
func histogramFor(h domain.BrightnessHistogram, ch domain.ChannelType) []int {
	switch ch {
	case domain.ChannelRed:
		return h.Red
	case domain.ChannelGreen:
		return h.Green
	case domain.ChannelBlue:
		return h.Blue
	case domain.ChannelGray:
		return h.Gray
	}
	return nil
}

// OpenPart streams either the stored original or one rendered part.
func (s *imageService) OpenPart(ctx context.Context, id, part string) (io.ReadCloser, string, error) {
	if s.s3Repo == nil {
		return nil, "", domain.ErrStorageDisabled
	}
	if err := uuid.Validate(id); err != nil {
		return nil, "", fmt.Errorf("image %q: %w", id, domain.ErrNotFound)
	}

	key := originalsPrefix + id
	contentType := "application/octet-stream"
	switch {
	case part == partOriginal:
	case slices.Contains(domain.Parts, part):
		key = partKey(id, part)
		contentType = "image/png"
	default:
		return nil, "", fmt.Errorf("part %q: %w", part, domain.ErrNotFound)
	}

	body, err := s.s3Repo.DownloadFile(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

// History returns the most recent edits, capped at the configured limit, and
// the total number recorded.
func (s *imageService) History(ctx context.Context, limit int) ([]domain.Edit, int, error) {
	if s.history == nil {
		return []domain.Edit{}, 0, nil
	}
	if limit <= 0 || limit > s.cfg.App.HistoryLimit {
		limit = s.cfg.App.HistoryLimit
	}
	edits, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load history: %w", err)
	}
	total, err := s.history.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load history: %w", err)
	}
	return edits, total, nil
}
