package sensor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Recognised probe fields.
const (
	FieldDetected          = "detected"
	FieldError             = "error"
	FieldVerificationToken = "verification_token"
)

// ProbeResult is the parsed JSON object reported by the probe.
//
// The recognised fields are decoded and type-checked. Every other field the
// probe emits (sensor_type, gpio_state, pin, ...) is kept verbatim so the
// response relays the probe's object unchanged apart from token injection.
type ProbeResult struct {
	fields map[string]json.RawMessage

	detected *bool
	errMsg   string
	token    string
}

// ParseProbeResult decodes probe output into a ProbeResult.
//
// The output must be a single JSON object. The recognised fields may be
// absent or null; when present they must be a bool (detected) or strings
// (error, verification_token).
func ParseProbeResult(data []byte) (*ProbeResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("expected a JSON object, got null")
	}

	r := &ProbeResult{fields: fields}

	var detected *bool
	if err := decodeField(fields, FieldDetected, &detected); err != nil {
		return nil, err
	}
	r.detected = detected

	var errMsg *string
	if err := decodeField(fields, FieldError, &errMsg); err != nil {
		return nil, err
	}
	if errMsg != nil {
		r.errMsg = *errMsg
	}

	var token *string
	if err := decodeField(fields, FieldVerificationToken, &token); err != nil {
		return nil, err
	}
	if token != nil {
		r.token = *token
	}

	return r, nil
}

// decodeField unmarshals fields[name] into dst when present.
func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	return nil
}

// Detected reports whether the probe saw a detection event.
// An absent or null detected field counts as false.
func (r *ProbeResult) Detected() bool {
	return r.detected != nil && *r.detected
}

// Error returns the probe's self-reported error, or "" if none.
func (r *ProbeResult) Error() string {
	return r.errMsg
}

// VerificationToken returns the token, or "" if none is set.
func (r *ProbeResult) VerificationToken() string {
	return r.token
}

// SetVerificationToken sets the token, replacing any probe-supplied value.
func (r *ProbeResult) SetVerificationToken(token string) {
	raw, _ := json.Marshal(token) //nolint:errcheck // marshalling a string cannot fail
	r.fields[FieldVerificationToken] = raw
	r.token = token
}

// clearError removes a blank or null error field. A successful result
// carries no error key.
func (r *ProbeResult) clearError() {
	delete(r.fields, FieldError)
	r.errMsg = ""
}

// MarshalJSON encodes the result as the probe's object with any injected token.
// Keys are emitted in sorted order so identical input yields identical output.
//
// HTML characters are left unescaped here, but json.Marshal escapes them again
// when it compacts a Marshaler's output. Callers that relay probe strings
// verbatim encode through a json.Encoder with SetEscapeHTML(false).
func (r *ProbeResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.fields); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FailurePayload is the only body shape returned when a read fails.
type FailurePayload struct {
	Detected bool   `json:"detected"`
	Error    string `json:"error"`
}

// NewFailurePayload builds the failure body for msg.
func NewFailurePayload(msg string) FailurePayload {
	return FailurePayload{Detected: false, Error: msg}
}
