package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/pixelclaim/internal/idempotency"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayHeader marks a response served from the idempotency store.
const IdempotentReplayHeader = "Idempotent-Replayed"

// idempotencyResponseWriter captures the status and body it forwards.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func newIdempotencyResponseWriter(w http.ResponseWriter) *idempotencyResponseWriter {
	return &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the status code.
func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the response body.
func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *idempotencyResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Idempotency replays the stored response when a POST carries an
// Idempotency-Key already used by the same wallet on the same route.
// Requests without the header pass through. Only 2xx responses are stored.
// Mount it after RequireAuth so keys are scoped to the wallet.
func Idempotency(repo idempotency.Repository, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if err := idempotency.ValidateKey(key); err != nil {
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					writeError(w, r, http.StatusBadRequest, "idempotency_key_too_long", "Idempotency-Key exceeds maximum length of 64 characters")
					return
				}
				writeError(w, r, http.StatusBadRequest, "invalid_idempotency_key", "Invalid Idempotency-Key format")
				return
			}

			ctx := r.Context()
			scoped := idempotency.ScopedKey(GetWallet(ctx), r.URL.Path, key)

			existing, err := repo.Get(ctx, scoped)
			switch {
			case err == nil && existing.Intact():
				logger.InfoContext(ctx, "replaying stored response", "key", key, "status", existing.StatusCode)
				if existing.ContentType != "" {
					w.Header().Set("Content-Type", existing.ContentType)
				}
				w.Header().Set(IdempotentReplayHeader, "true")
				w.WriteHeader(existing.StatusCode)
				_, _ = w.Write(existing.Body)
				return
			case err == nil:
				logger.WarnContext(ctx, "stored response failed integrity check, executing request", "key", key)
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				logger.ErrorContext(ctx, "failed to check idempotency key", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			capture := newIdempotencyResponseWriter(w)
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}
			body := capture.body.Bytes()
			record := &idempotency.Record{
				Key:          scoped,
				Wallet:       GetWallet(ctx),
				Route:        r.URL.Path,
				StatusCode:   capture.statusCode,
				ContentType:  capture.Header().Get("Content-Type"),
				Body:         body,
				ResponseHash: idempotency.ComputeResponseHash(body),
			}
			// The client already has the response; use a context that outlives it.
			if err := repo.Store(context.WithoutCancel(ctx), record); err != nil && !errors.Is(err, idempotency.ErrKeyExists) {
				logger.ErrorContext(ctx, "failed to store idempotency key", "key", key, "error", err)
			}
		})
	}
}
