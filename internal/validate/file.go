package validate

import (
	"fmt"
	"mime"
	"slices"
	"strings"
)

// AllowedImageTypes are the image formats media placements accept.
var AllowedImageTypes = []string{"image/gif", "image/png", "image/jpeg", "image/webp"}

// FileConstraints bounds an upload.
type FileConstraints struct {
	AllowedTypes []string
	MaxSizeBytes int64
}

// File checks an upload's declared content type and size and returns the
// normalized media type, without parameters.
func File(contentType string, sizeBytes int64, c FileConstraints) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	if mediaType == "" || sizeBytes <= 0 {
		return "", ErrEmpty
	}
	if !slices.Contains(c.AllowedTypes, mediaType) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMIMEType, mediaType)
	}
	if c.MaxSizeBytes > 0 && sizeBytes > c.MaxSizeBytes {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, sizeBytes, c.MaxSizeBytes)
	}
	return mediaType, nil
}
