// Package media manages images and link buttons placed over owned cells.
// Every placement must sit entirely inside cells the wallet owns.
package media

import (
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/pixelclaim/internal/grid"
)

// Placement rules.
const (
	MaxUploadBytes      = 2 << 20
	SlotSide            = 23
	SlotPixels          = SlotSide * SlotSide
	MinLinkButtonPixels = 5000
	MaxButtonTextLength = 60
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotOwned      = errors.New("you must own every pixel in the rectangle")
	ErrNoSlot        = errors.New("media limit reached for owned pixels")
	ErrNoBlock       = errors.New("a fully owned 23x23 block is required")
	ErrTooFewPixels  = errors.New("not enough owned pixels for link buttons")
	ErrNoPrincipal   = errors.New("wallet is required")
	ErrInvalidUpload = errors.New("invalid media file")
)

// IsForbidden reports whether err is a placement rule the wallet does not meet.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotOwned) || errors.Is(err, ErrNoSlot) ||
		errors.Is(err, ErrNoBlock) || errors.Is(err, ErrTooFewPixels)
}

// ValidationError reports a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Media is an image placed over a rectangle of owned cells.
type Media struct {
	ID     string `json:"id"`
	Wallet string `json:"wallet"`
	grid.Rect
	ContentType string    `json:"mimeType"`
	BlobKey     string    `json:"-"`
	ETag        string    `json:"-"`
	SizeBytes   int64     `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FileURL is the path the file is served from.
func (m Media) FileURL() string {
	return "/api/media/" + m.ID + "/file"
}

// LinkButton is a clickable label placed over owned cells.
type LinkButton struct {
	ID     string `json:"id"`
	Wallet string `json:"wallet"`
	grid.Rect
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}
