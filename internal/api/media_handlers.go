package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/media"
	"github.com/onnwee/pixelclaim/internal/middleware"
	"github.com/onnwee/pixelclaim/internal/upload"
)

const (
	// multipartOverhead leaves room for the form fields around the file.
	multipartOverhead = 64 << 10
	maxLinkButtonBody = 8 << 10
	mediaCacheControl = "public, max-age=86400"
)

// MediaService places media and link buttons. *media.Service satisfies it.
type MediaService interface {
	PlacementLister
	Upload(ctx context.Context, req media.UploadRequest) (*media.Media, error)
	Open(ctx context.Context, id string) (*media.Media, *upload.Blob, error)
	Delete(ctx context.Context, wallet, id string) error
	CreateLinkButton(ctx context.Context, req media.LinkButtonRequest) (*media.LinkButton, error)
	DeleteLinkButton(ctx context.Context, wallet, id string) error
}

// MediaHandlers serves media and link buttons.
type MediaHandlers struct {
	service MediaService
}

// NewMediaHandlers creates MediaHandlers.
func NewMediaHandlers(service MediaService) *MediaHandlers {
	return &MediaHandlers{service: service}
}

// ListMedia returns every placed media item.
// GET /api/media
func (h *MediaHandlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		writeDomainError(w, r, "list media", err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"media": mediaViews(items)})
}

// UploadMedia places an image over a rectangle of the caller's cells. The
// body is multipart with a "file" part and x, y, width and height fields.
// POST /api/media
func (h *MediaHandlers) UploadMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(media.MaxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeValidation, "File exceeds 2 MB")
			return
		}
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "File is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, media.MaxUploadBytes+1))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Could not read file")
		return
	}

	rect, ok := formRect(r)
	if !ok {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid media rectangle")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	m, err := h.service.Upload(ctx, media.UploadRequest{
		Wallet:      middleware.GetWallet(ctx),
		Rect:        rect,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeDomainError(w, r, "upload media", err)
		return
	}
	writeJSON(w, ctx, http.StatusOK, map[string]any{"media": mediaView{Media: *m, URL: m.FileURL()}})
}

func formRect(r *http.Request) (grid.Rect, bool) {
	var vals [4]int
	for i, name := range []string{"x", "y", "width", "height"} {
		v, err := strconv.Atoi(r.FormValue(name))
		if err != nil {
			return grid.Rect{}, false
		}
		vals[i] = v
	}
	return grid.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, true
}

// MediaFile serves the stored image.
// GET /api/media/{id}/file
func (h *MediaHandlers) MediaFile(w http.ResponseWriter, r *http.Request) {
	m, blob, err := h.service.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "open media", err)
		return
	}
	w.Header().Set("Cache-Control", mediaCacheControl)
	w.Header().Set("ETag", m.ETag)
	if m.ETag != "" && r.Header.Get("If-None-Match") == m.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = m.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	_, _ = w.Write(blob.Data)
}

// DeleteMedia removes a media item the caller placed.
// DELETE /api/media/{id}
func (h *MediaHandlers) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Delete(ctx, middleware.GetWallet(ctx), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, "delete media", err)
		return
	}
	writeJSON(w, ctx, http.StatusOK, map[string]bool{"deleted": true})
}

// ListLinkButtons returns every placed link button.
// GET /api/link-buttons
func (h *MediaHandlers) ListLinkButtons(w http.ResponseWriter, r *http.Request) {
	buttons, err := h.service.ListLinkButtons(r.Context())
	if err != nil {
		writeDomainError(w, r, "list link buttons", err)
		return
	}
	if buttons == nil {
		buttons = []media.LinkButton{}
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"linkButtons": buttons})
}

// LinkButtonRequest is the body of POST /api/link-buttons.
type LinkButtonRequest struct {
	grid.Rect
	Text string `json:"text"`
	URL  string `json:"url"`
}

// CreateLinkButton places a link button over the caller's cells.
// POST /api/link-buttons
func (h *MediaHandlers) CreateLinkButton(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LinkButtonRequest
	if !decodeJSON(w, r, maxLinkButtonBody, &req) {
		return
	}
	b, err := h.service.CreateLinkButton(ctx, media.LinkButtonRequest{
		Wallet: middleware.GetWallet(ctx),
		Rect:   req.Rect,
		Text:   req.Text,
		URL:    req.URL,
	})
	if err != nil {
		writeDomainError(w, r, "create link button", err)
		return
	}
	writeJSON(w, ctx, http.StatusOK, map[string]any{"linkButton": b})
}

// DeleteLinkButton removes a link button the caller placed.
// DELETE /api/link-buttons/{id}
func (h *MediaHandlers) DeleteLinkButton(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.DeleteLinkButton(ctx, middleware.GetWallet(ctx), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, "delete link button", err)
		return
	}
	writeJSON(w, ctx, http.StatusOK, map[string]bool{"deleted": true})
}
