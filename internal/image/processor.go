// Package image sanitizes uploaded media before it is stored.
package image

import (
	"errors"
	"fmt"

	"github.com/h2non/bimg"
)

// Content types accepted for grid media.
const (
	MIMEGIF  = "image/gif"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEWebP = "image/webp"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTypeMismatch    = errors.New("image content does not match declared type")
)

// ProcessorConfig holds configuration for image processing.
type ProcessorConfig struct {
	// Quality for JPEG/WebP encoding (1-100, default: 85)
	Quality int
	// StripMetadata removes all EXIF/metadata (default: true)
	StripMetadata bool
}

// DefaultConfig returns the settings used for grid media.
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		Quality:       85,
		StripMetadata: true,
	}
}

// Processor re-encodes static images in their original format.
type Processor struct {
	config ProcessorConfig
}

// NewProcessor creates a new image processor with the given config.
func NewProcessor(config ProcessorConfig) *Processor {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultConfig().Quality
	}
	return &Processor{config: config}
}

// DetectType sniffs the image format and returns its content type.
func DetectType(data []byte) (string, error) {
	switch bimg.DetermineImageTypeName(data) {
	case "gif":
		return MIMEGIF, nil
	case "png":
		return MIMEPNG, nil
	case "jpeg":
		return MIMEJPEG, nil
	case "webp":
		return MIMEWebP, nil
	default:
		return "", ErrUnsupportedType
	}
}

// Sanitize checks that data really is contentType and returns the bytes to
// store. GIFs are returned unchanged so animation survives; other formats
// are re-encoded with metadata stripped.
func (p *Processor) Sanitize(data []byte, contentType string) ([]byte, error) {
	actual, err := DetectType(data)
	if err != nil {
		return nil, err
	}
	if actual != contentType {
		return nil, fmt.Errorf("%w: declared %s, got %s", ErrTypeMismatch, contentType, actual)
	}
	if actual == MIMEGIF {
		return data, nil
	}

	img := bimg.NewImage(data)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}

	out, err := img.Process(bimg.Options{
		Quality:       p.config.Quality,
		StripMetadata: p.config.StripMetadata,
		Type:          determineImageType(metadata.Type),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}
	return out, nil
}

// determineImageType maps bimg's string type to bimg.ImageType constant.
func determineImageType(typeStr string) bimg.ImageType {
	switch typeStr {
	case "png":
		return bimg.PNG
	case "webp":
		return bimg.WEBP
	case "gif":
		return bimg.GIF
	default:
		return bimg.JPEG
	}
}

// VerifyNoEXIF reports whether imageBytes carries no identifying EXIF fields.
func VerifyNoEXIF(imageBytes []byte) (bool, error) {
	metadata, err := bimg.NewImage(imageBytes).Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}
	exif := metadata.EXIF
	hasEXIF := exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != ""
	return !hasEXIF, nil
}
