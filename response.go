package bifrost

import (
	"encoding/json"
	"io"
)

// Envelope is the request body sent to a mounted endpoint:
//
//	{"argument": <json>}
//
// A missing or null argument decodes to the zero value of the leaf's
// argument type.
type Envelope struct {
	Argument json.RawMessage `json:"argument,omitempty"`
}

// outgoingEnvelope is the client-side form of Envelope.
type outgoingEnvelope struct {
	Argument any `json:"argument,omitempty"`
}

// errorResponse is the envelope for error responses.
// Successful responses carry the leaf's result as the raw body, unwrapped.
type errorResponse struct {
	Error *Error `json:"error"`
}

// encodeResponse writes a successful result. The value is not wrapped.
func encodeResponse(w io.Writer, result any) error {
	return json.NewEncoder(w).Encode(result)
}

// encodeErrorResponse writes an error envelope.
func encodeErrorResponse(w io.Writer, err *Error) error {
	return json.NewEncoder(w).Encode(errorResponse{Error: err})
}

// decodeErrorResponse reads an error envelope. It returns nil when body is
// not one.
func decodeErrorResponse(body []byte) *Error {
	var env errorResponse
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil || env.Error.Code == "" {
		return nil
	}
	return env.Error
}
