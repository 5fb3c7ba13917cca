package rest

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
)

var errRateLimited = errors.New("session rate limit exceeded")

// initError marks a failure while building or connecting a session server
type initError struct {
	err error
}

func (e *initError) Error() string {
	return "error initializing server: " + e.err.Error()
}

func (e *initError) Unwrap() error {
	return e.err
}

func (c *Coordinator) writeError(w http.ResponseWriter, id interface{}, err error) {
	var (
		notFound   *domain.SessionNotFoundError
		badRequest *domain.BadRequestError
		invalid    *configError
		initFailed *initError
	)

	switch {
	case errors.Is(err, errRateLimited):
		w.Header().Set("Retry-After", "1")
		writeJSONRPCError(w, http.StatusTooManyRequests, id, shared.ServerError, msgRateLimited)
	case errors.As(err, &notFound):
		writeJSONRPCError(w, http.StatusNotFound, id, shared.ServerError, msgSessionNotFound)
	case errors.As(err, &badRequest):
		writeJSONRPCError(w, http.StatusBadRequest, id, shared.ServerError, badRequest.Err.Message)
	case errors.As(err, &invalid):
		writeProblem(w, invalid.problem)
	case errors.As(err, &initFailed):
		c.logger.Error("error initializing session", logging.Fields{"error": initFailed.err})
		writeJSONRPCError(w, http.StatusInternalServerError, id, shared.InternalError, msgInitFailed)
	default:
		c.logger.Error("unexpected coordinator error", logging.Fields{"error": err})
		writeJSONRPCError(w, http.StatusInternalServerError, id, shared.InternalError, "Internal server error")
	}
}

func writeJSONRPCError(w http.ResponseWriter, status int, id interface{}, code shared.ErrorCode, message string) {
	writeJSON(w, status, "application/json", shared.NewErrorResponse(id, code, message))
}

func writeJSON(w http.ResponseWriter, status int, contentType string, body interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
