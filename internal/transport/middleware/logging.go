package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"

	pkglogger "github.com/frahmantamala/payment-gateway/pkg/logger"
)

const (
	redacted = "[FILTERED]"

	// bodies beyond this are logged truncated
	maxLoggedBody = 4 << 10

	// request bodies beyond this are cut off before buffering
	maxRequestBody = 1 << 20
)

// secretMarkers match header and JSON field names that carry credentials.
var secretMarkers = []string{
	"authorization",
	"token",
	"secret",
	"password",
	"cookie",
}

// cardFields hold card data. The card number keeps its last four digits.
var cardFields = map[string]bool{
	"card_number": true,
	"cvv":         true,
}

func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := middleware.GetReqID(r.Context())
			lg := requestLogger(r.Context(), logger).With("request_id", reqID)

			logRequest(lg, w, r)

			var captured bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&limitedWriter{buf: &captured, limit: maxLoggedBody})

			next.ServeHTTP(ww, r)

			logResponse(lg, ww, captured.Bytes(), time.Since(start))
		})
	}
}

// requestLogger prefers the request-scoped logger carrying the trace id.
func requestLogger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctxLogger := pkglogger.From(ctx); ctxLogger != nil && ctxLogger != pkglogger.LoggerWrapper() {
		return ctxLogger
	}
	return fallback
}

// limitedWriter keeps the first limit bytes and drops the rest without error.
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if room := l.limit - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

func logRequest(logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		read, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			// the handler sees the same failure once it has drained what was read
			logger.Warn("request body not buffered", "error", err, "read_bytes", len(read))
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(read), errReader{err: err}))
		} else {
			body = read
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	logger.Info("incoming request",
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"headers", redactHeaders(r.Header),
		"body", redactBody(body),
	)
}

type errReader struct {
	err error
}

func (e errReader) Read([]byte) (int, error) {
	return 0, e.err
}

func logResponse(logger *slog.Logger, ww middleware.WrapResponseWriter, body []byte, duration time.Duration) {
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	logger.Log(context.Background(), level, "response",
		"status_code", status,
		"duration_ms", duration.Milliseconds(),
		"response_size", ww.BytesWritten(),
		"body", redactBody(body),
	)
}

func isSecret(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range secretMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSecret(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// redactBody renders a JSON body with card data and credentials masked. Bodies
// that are not JSON are dropped, since they cannot be inspected field by field.
func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "[UNPARSEABLE BODY]"
	}

	out, err := json.Marshal(redactValue(data))
	if err != nil {
		return "[UNPARSEABLE BODY]"
	}
	return string(out)
}

func redactValue(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			lower := strings.ToLower(key)
			switch {
			case lower == "card_number":
				out[key] = maskCardNumber(value)
			case cardFields[lower], isSecret(lower):
				out[key] = redacted
			default:
				out[key] = redactValue(value)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

func maskCardNumber(value interface{}) string {
	s, ok := value.(string)
	if !ok || len(s) <= 4 {
		return redacted
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
