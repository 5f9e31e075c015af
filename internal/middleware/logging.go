// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
)

// walletKey is the context key for the authenticated wallet.
type walletKey struct{}

// requestInfoKey is the context key for the per-request log fields.
type requestInfoKey struct{}

// requestInfo carries fields set by inner handlers back to Logging, which
// only holds the context it created.
type requestInfo struct {
	wallet    string
	errorCode string
}

func getRequestInfo(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// SetWallet stores the authenticated wallet in the context.
func SetWallet(ctx context.Context, wallet string) context.Context {
	if info := getRequestInfo(ctx); info != nil {
		info.wallet = wallet
	}
	return context.WithValue(ctx, walletKey{}, wallet)
}

// GetWallet returns the authenticated wallet, or "" if the request is anonymous.
func GetWallet(ctx context.Context) string {
	if wallet, ok := ctx.Value(walletKey{}).(string); ok {
		return wallet
	}
	return ""
}

// SetErrorCode records code for the access log.
func SetErrorCode(ctx context.Context, code string) context.Context {
	if info := getRequestInfo(ctx); info != nil {
		info.errorCode = code
		return ctx
	}
	return context.WithValue(ctx, requestInfoKey{}, &requestInfo{errorCode: code})
}

// GetErrorCode returns the recorded error code, or "".
func GetErrorCode(ctx context.Context) string {
	if info := getRequestInfo(ctx); info != nil {
		return info.errorCode
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

// WriteHeader captures the status code. Only the first call counts.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler.
// Otherwise, it returns a text handler for development.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging logs one line per request with method, path, status, latency,
// size, request id, wallet and error_code when present.
//
// Place a recovery middleware outside of it so panics are still logged.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			ctx := context.WithValue(r.Context(), requestInfoKey{}, info)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int("size", rw.size),
			}
			if requestID := GetRequestID(ctx); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			if info.wallet != "" {
				attrs = append(attrs, slog.String("wallet", info.wallet))
			}
			if rw.statusCode >= 400 && info.errorCode != "" {
				attrs = append(attrs, slog.String("error_code", info.errorCode))
			}

			switch {
			case rw.statusCode >= 500:
				logger.LogAttrs(ctx, slog.LevelError, "request completed", attrs...)
			case rw.statusCode >= 400:
				logger.LogAttrs(ctx, slog.LevelWarn, "request completed", attrs...)
			default:
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}

// Hijack lets the live feed upgrade to a WebSocket through this wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}
