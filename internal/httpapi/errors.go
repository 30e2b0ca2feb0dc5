package httpapi

import (
	"encoding/json"
	"net/http"

	"inferproxy/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeOpenAIError emits a gateway-synthesized error in the OpenAI envelope.
// Backend errors never pass through here; they are relayed verbatim.
func writeOpenAIError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: types.ErrorDetail{
		Message: msg,
		Type:    errorType(status),
		Code:    code,
	}})
}

func errorType(status int) string {
	if status >= 400 && status < 500 {
		return "invalid_request_error"
	}
	return "api_error"
}
