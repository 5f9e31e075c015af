package media

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"lukechampine.com/blake3"

	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/rectindex"
	"github.com/onnwee/pixelclaim/internal/upload"
	"github.com/onnwee/pixelclaim/internal/validate"
)

// GridSource provides the current grid. *grid.State satisfies it.
type GridSource interface {
	Snapshot() *grid.Snapshot
}

// Sanitizer checks and re-encodes an uploaded file. *image.Processor
// satisfies it.
type Sanitizer interface {
	Sanitize(data []byte, contentType string) ([]byte, error)
}

// Config wires a Service.
type Config struct {
	Repository Repository
	Blobs      upload.BlobStore
	Sanitizer  Sanitizer
	Grid       GridSource
	Logger     *slog.Logger
	// OnChange runs after any media or link button is created or deleted.
	OnChange func(ctx context.Context)
}

// Service enforces placement rules for media and link buttons.
type Service struct {
	repo      Repository
	blobs     upload.BlobStore
	sanitizer Sanitizer
	grid      GridSource
	index     *rectindex.Cache
	text      *bluemonday.Policy
	logger    *slog.Logger
	onChange  func(ctx context.Context)
	now       func() time.Time
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onChange := cfg.OnChange
	if onChange == nil {
		onChange = func(context.Context) {}
	}
	return &Service{
		repo:      cfg.Repository,
		blobs:     cfg.Blobs,
		sanitizer: cfg.Sanitizer,
		grid:      cfg.Grid,
		index:     rectindex.NewCache(),
		text:      bluemonday.StrictPolicy(),
		logger:    logger,
		onChange:  onChange,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UploadRequest places a file over rect.
type UploadRequest struct {
	Wallet      string
	Rect        grid.Rect
	ContentType string
	Data        []byte
}

// Upload validates, sanitizes and stores a media file.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Media, error) {
	if req.Wallet == "" {
		return nil, ErrNoPrincipal
	}
	contentType, err := validate.File(req.ContentType, int64(len(req.Data)), validate.FileConstraints{
		AllowedTypes: validate.AllowedImageTypes,
		MaxSizeBytes: MaxUploadBytes,
	})
	switch {
	case errors.Is(err, validate.ErrFileTooLarge):
		return nil, &ValidationError{Field: "file", Message: fmt.Sprintf("file exceeds %d bytes", MaxUploadBytes)}
	case errors.Is(err, validate.ErrInvalidMIMEType), errors.Is(err, validate.ErrEmpty):
		return nil, &ValidationError{Field: "file", Message: "only GIF, PNG, JPG and WEBP are allowed"}
	case err != nil:
		return nil, &ValidationError{Field: "file", Message: "file is required"}
	}
	if !req.Rect.Valid() {
		return nil, &ValidationError{Field: "rect", Message: "rectangle must lie inside the grid"}
	}

	ix := s.index.Get(s.grid.Snapshot(), req.Wallet)
	owned := ix.CountOwned(0, 0, grid.Size, grid.Size)
	used, err := s.repo.CountMediaBy(ctx, req.Wallet)
	if err != nil {
		return nil, err
	}
	if used >= owned/SlotPixels {
		return nil, ErrNoSlot
	}
	if _, ok := ix.FindFirstFullyOwnedRect(SlotSide, SlotSide); !ok {
		return nil, ErrNoBlock
	}
	if !ix.FullyOwned(req.Rect) {
		return nil, ErrNotOwned
	}

	data, err := s.sanitizer.Sanitize(req.Data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	key, err := upload.GenerateObjectKey(contentType, req.Wallet)
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Put(ctx, key, contentType, data); err != nil {
		return nil, err
	}

	m := Media{
		ID:          uuid.New().String(),
		Wallet:      req.Wallet,
		Rect:        req.Rect,
		ContentType: contentType,
		BlobKey:     key,
		ETag:        ETag(data),
		SizeBytes:   int64(len(data)),
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateMedia(ctx, m); err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned media blob", "key", key, "error", derr)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "media placed",
		"media_id", m.ID, "wallet", m.Wallet, "x", m.X, "y", m.Y,
		"width", m.Width, "height", m.Height, "size_bytes", m.SizeBytes)
	s.onChange(ctx)
	return &m, nil
}

// List returns every placed media item.
func (s *Service) List(ctx context.Context) ([]Media, error) {
	return s.repo.ListMedia(ctx)
}

// Open returns a media record and its file.
func (s *Service) Open(ctx context.Context, id string) (*Media, *upload.Blob, error) {
	m, err := s.repo.GetMedia(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	blob, err := s.blobs.Get(ctx, m.BlobKey)
	if errors.Is(err, upload.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return m, blob, nil
}

// Delete removes a media item owned by wallet.
func (s *Service) Delete(ctx context.Context, wallet, id string) error {
	m, err := s.repo.DeleteMedia(ctx, id, wallet)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, m.BlobKey); err != nil {
		s.logger.WarnContext(ctx, "failed to delete media blob", "media_id", id, "key", m.BlobKey, "error", err)
	}
	s.onChange(ctx)
	return nil
}

// LinkButtonRequest places a link button over rect.
type LinkButtonRequest struct {
	Wallet string
	Rect   grid.Rect
	Text   string
	URL    string
}

// CreateLinkButton validates and stores a link button.
func (s *Service) CreateLinkButton(ctx context.Context, req LinkButtonRequest) (*LinkButton, error) {
	if req.Wallet == "" {
		return nil, ErrNoPrincipal
	}
	text, err := validate.String(s.text.Sanitize(req.Text), validate.StringConstraints{
		MinLength: 1,
		MaxLength: MaxButtonTextLength,
		TrimSpace: true,
	})
	if err != nil {
		return nil, &ValidationError{Field: "text", Message: fmt.Sprintf("text must be 1 to %d characters", MaxButtonTextLength)}
	}
	link, err := validate.URL(req.URL, validate.PublicWebURLConstraints)
	if err != nil {
		return nil, &ValidationError{Field: "url", Message: "url must be a public http or https link"}
	}
	if !req.Rect.Valid() {
		return nil, &ValidationError{Field: "rect", Message: "rectangle must lie inside the grid"}
	}

	ix := s.index.Get(s.grid.Snapshot(), req.Wallet)
	if ix.CountOwned(0, 0, grid.Size, grid.Size) < MinLinkButtonPixels {
		return nil, ErrTooFewPixels
	}
	if !ix.FullyOwned(req.Rect) {
		return nil, ErrNotOwned
	}

	b := LinkButton{
		ID:        uuid.New().String(),
		Wallet:    req.Wallet,
		Rect:      req.Rect,
		Text:      text,
		URL:       link,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateLinkButton(ctx, b); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "link button placed", "link_button_id", b.ID, "wallet", b.Wallet)
	s.onChange(ctx)
	return &b, nil
}

// ListLinkButtons returns every placed link button.
func (s *Service) ListLinkButtons(ctx context.Context) ([]LinkButton, error) {
	return s.repo.ListLinkButtons(ctx)
}

// DeleteLinkButton removes a link button owned by wallet.
func (s *Service) DeleteLinkButton(ctx context.Context, wallet, id string) error {
	if err := s.repo.DeleteLinkButton(ctx, id, wallet); err != nil {
		return err
	}
	s.onChange(ctx)
	return nil
}

// ETag returns a strong entity tag for file contents.
func ETag(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
