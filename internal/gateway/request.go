package gateway

import (
	"encoding/json"

	"inferproxy/pkg/types"
)

// ChatRequest is the routed view of an inbound chat-completion call: the
// fields the gateway routes on plus the raw payload to forward upstream.
type ChatRequest struct {
	Model  string
	Stream bool
	Hint   types.Backend
	// Payload is the request body with backend-selection metadata removed.
	Payload []byte
}

// ParseChatRequest decodes an OpenAI-style chat body just far enough to
// route it. A "backend" field inside the body acts as a hint and is
// stripped from the forwarded payload; the query parameter wins when both
// are present, and defaultHint applies when neither is.
func ParseChatRequest(body []byte, queryHint string, defaultHint types.Backend) (ChatRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ChatRequest{}, errBadRequest("invalid JSON body")
	}

	var req ChatRequest
	if raw, ok := fields["model"]; ok {
		if err := json.Unmarshal(raw, &req.Model); err != nil {
			return ChatRequest{}, errBadRequest("model must be a string")
		}
	}
	if req.Model == "" {
		return ChatRequest{}, errBadRequest("model is required")
	}
	if raw, ok := fields["stream"]; ok {
		if err := json.Unmarshal(raw, &req.Stream); err != nil {
			return ChatRequest{}, errBadRequest("stream must be a boolean")
		}
	}

	bodyHint := ""
	rawHint, hadBodyHint := fields["backend"]
	if hadBodyHint {
		if err := json.Unmarshal(rawHint, &bodyHint); err != nil {
			return ChatRequest{}, errBadRequest("backend must be a string")
		}
	}
	hintStr := queryHint
	if hintStr == "" {
		hintStr = bodyHint
	}
	hint, err := types.ParseBackend(hintStr)
	if err != nil {
		return ChatRequest{}, errBadRequest(err.Error())
	}
	if hintStr == "" {
		hint = defaultHint
	}
	req.Hint = hint

	if hadBodyHint {
		delete(fields, "backend")
		stripped, err := json.Marshal(fields)
		if err != nil {
			return ChatRequest{}, errBadRequest("re-encode body: " + err.Error())
		}
		req.Payload = stripped
	} else {
		// Nothing to strip: forward the caller's bytes untouched.
		req.Payload = body
	}
	return req, nil
}
