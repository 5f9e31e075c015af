// Package api provides the HTTP handlers of the pixelclaim API and its
// standardized error responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/pixelclaim/internal/acquisition"
	"github.com/onnwee/pixelclaim/internal/auth"
	"github.com/onnwee/pixelclaim/internal/chain"
	"github.com/onnwee/pixelclaim/internal/media"
	"github.com/onnwee/pixelclaim/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeSignatureUsed indicates the payment signature was consumed before.
	ErrCodeSignatureUsed = "signature_used"

	// ErrCodePaymentRejected indicates the transaction did not prove payment.
	ErrCodePaymentRejected = "payment_rejected"

	// ErrCodeLedgerUnavailable indicates the ledger could not be reached.
	ErrCodeLedgerUnavailable = "ledger_unavailable"

	// ErrCodeNotOwned indicates a placement outside the caller's cells.
	ErrCodeNotOwned = "not_owned"

	// ErrCodeUnsupportedType indicates an unsupported content type for upload.
	ErrCodeUnsupportedType = "unsupported_type"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and records code on
// the request so the logging middleware reports it.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// Example:
//
//	api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "Media not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.SetErrorCode(ctx, code)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for common error codes.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeUnsupportedType:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden, ErrCodePaymentRejected, ErrCodeNotOwned:
		return http.StatusForbidden
	case ErrCodeConflict, ErrCodeSignatureUsed:
		return http.StatusConflict
	case ErrCodeLedgerUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// classify maps a domain error to an error code and client-facing message.
// Unknown errors are internal and get a generic message.
func classify(err error) (code, message string) {
	var (
		acqValidation   *acquisition.ValidationError
		mediaValidation *media.ValidationError
		verification    *acquisition.VerificationError
	)
	switch {
	case errors.As(err, &acqValidation):
		return ErrCodeValidation, acqValidation.Message
	case errors.As(err, &mediaValidation):
		return ErrCodeValidation, mediaValidation.Message
	case errors.Is(err, media.ErrInvalidUpload):
		return ErrCodeUnsupportedType, "File could not be read as an image"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return ErrCodeAuthFailed, "Invalid or expired token"
	case errors.Is(err, auth.ErrBadSignature):
		return ErrCodeAuthFailed, "Signature verification failed"
	case errors.Is(err, auth.ErrInvalidWallet):
		return ErrCodeValidation, "Invalid wallet address"
	case errors.Is(err, acquisition.ErrSignatureUsed):
		return ErrCodeSignatureUsed, "This transaction signature has already been used"
	case errors.As(err, &verification):
		return ErrCodePaymentRejected, verification.Reason
	case errors.Is(err, chain.ErrDependency):
		return ErrCodeLedgerUnavailable, "Could not reach the ledger, try again later"
	case errors.Is(err, media.ErrNotOwned):
		return ErrCodeNotOwned, media.ErrNotOwned.Error()
	case media.IsForbidden(err):
		return ErrCodeForbidden, err.Error()
	case errors.Is(err, media.ErrNotFound):
		return ErrCodeNotFound, "Not found or not owned by you"
	case errors.Is(err, media.ErrNoPrincipal):
		return ErrCodeAuthFailed, "Authentication required"
	}
	return ErrCodeInternal, "Internal server error"
}

// writeDomainError writes the response for err. Internal errors are logged
// with op and never echoed to the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	code, message := classify(err)
	status := StatusCodeMapping(code)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, op+" failed", "error", err)
	}
	WriteError(w, ctx, status, code, message)
}

// writeJSON writes v with status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// decodeJSON reads a JSON body of at most limit bytes into v. It writes the
// error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r.Context(), http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
			return false
		}
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return false
	}
	return true
}
