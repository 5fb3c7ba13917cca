package logging

import (
	"context"
	"net/http"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
)

type contextKey string

const loggerKey contextKey = "logger"

// Middleware creates an HTTP middleware that adds a request-scoped logger
// to the request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestLogger := logger.With(Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			})
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), requestLogger)))
		})
	}
}

// NewContext returns a copy of ctx carrying logger
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from the context, falling back to the
// default logger.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(loggerKey).(*Logger)
	if !ok || logger == nil {
		return Default()
	}
	return logger
}

// LogJSONRPCMessage logs the identifying fields of any JSON-RPC message at
// debug level
func LogJSONRPCMessage(logger *Logger, direction string, msg shared.JSONRPCMessage) {
	fields := Fields{"direction": direction}

	switch m := msg.(type) {
	case shared.JSONRPCRequest:
		fields["id"] = m.ID
		fields["method"] = m.Method
	case shared.JSONRPCNotification:
		fields["method"] = m.Method
	case shared.JSONRPCResponse:
		fields["id"] = m.ID
		if m.Error != nil {
			fields["error_code"] = m.Error.Code
			fields["error_message"] = m.Error.Message
		}
	}

	logger.Debug("JSON-RPC message", fields)
}
