// Package validate checks user-supplied values before they reach the media
// and link-button stores.
package validate

import "errors"

var (
	ErrEmpty            = errors.New("value is empty")
	ErrTooShort         = errors.New("value is too short")
	ErrTooLong          = errors.New("value is too long")
	ErrInvalidMIMEType  = errors.New("invalid MIME type")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrSSRFRisk         = errors.New("URL points at a private address")
)
