package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imageeditor/internal/domain"
)

type ImageProcessor struct {
	log       *zap.Logger
	maxPixels int
	encoder   png.Encoder
}

// NewImageProcessor returns a codec that refuses images with more than
// maxPixels pixels. maxPixels <= 0 disables the check.
func NewImageProcessor(log *zap.Logger, maxPixels int) *ImageProcessor {
	return &ImageProcessor{
		log:       log,
		maxPixels: maxPixels,
		encoder:   png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

// Decode sniffs the format and decodes data. The header is checked against
// the pixel budget before the full decode.
func (p *ImageProcessor) Decode(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", domain.ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}

	if p.maxPixels > 0 && cfg.Width*cfg.Height > p.maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", domain.ErrImageTooLarge, cfg.Width, cfg.Height, p.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}

	p.log.Debug("Image decoded",
		zap.String("format", format),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))

	return img, format, nil
}

func (p *ImageProcessor) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType guesses the MIME type from a file extension.
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func IsAllowed(filename string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	return slices.Contains(allowed, strings.ToLower(filepath.Ext(filename)))
}

// LocalImages lists the image files directly inside dir, sorted by name.
// A path to a single file is returned as is.
func (p *ImageProcessor) LocalImages(path string, allowed []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !IsAllowed(entry.Name(), allowed) {
			p.log.Warn("Skipping unsupported file", zap.String("file", entry.Name()))
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)

	return files, nil
}

// OutputName derives the file name for a rendered part of source.
func OutputName(source, part string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return part + "_" + base + ".png"
}
