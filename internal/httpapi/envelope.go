package httpapi

import (
	"encoding/json"
	"net/http"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
)

// envelope is the success shape: {ok:true, result:<payload>}.
type envelope struct {
	OK     bool `json:"ok"`
	Result any  `json:"result"`
}

// errorEnvelope is the failure shape: {ok:false, error:{code, message}}.
type errorEnvelope struct {
	OK    bool          `json:"ok"`
	Error envelopeError `json:"error"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeResult writes a success envelope with the given HTTP status.
func writeResult(w http.ResponseWriter, status int, result any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{OK: true, Result: result})
}

// writeError coerces err into the error taxonomy and writes the matching
// HTTP status and error envelope. Errors not already tagged with a Kind are
// treated as internal errors, never leaking their raw message to clients.
func writeError(w http.ResponseWriter, err error) {
	kind := cerrors.InternalError
	message := "internal error"
	if tagged, ok := cerrors.As(err); ok {
		kind = tagged.Kind
		message = tagged.Message
		if message == "" {
			message = string(kind)
		}
	}

	status := cerrors.HTTPStatus(kind)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		OK: false,
		Error: envelopeError{
			Code:    string(kind),
			Message: message,
		},
	})
}
