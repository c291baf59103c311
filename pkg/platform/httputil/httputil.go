package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "merchant/pkg/domain-errors"
)

// Validatable is implemented by request bodies that normalize and validate
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the {error, error_description} envelope.
// Internal errors never include a description.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := dErrors.CodeInternal
	message := ""
	if de, ok := dErrors.As(err); ok {
		code = de.Code
		status = dErrors.ToHTTPStatus(de.Code)
		message = de.Message
	}

	body := map[string]string{"error": string(code)}
	if status < http.StatusInternalServerError && message != "" {
		body["error_description"] = message
	}
	WriteJSON(w, status, body)
}

// DecodeAndPrepare decodes the JSON body into T and runs its validation.
// On failure it writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}

	return &req, true
}
