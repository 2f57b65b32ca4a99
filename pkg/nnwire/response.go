package nnwire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var ErrMalformedResponse = errors.New("nnwire: malformed response")

// Response is one inbound message. Failure is set iff the server marked the
// message as an error outcome; Raw always holds the complete message.
type Response struct {
	Type    string
	Token   string
	Raw     json.RawMessage
	Failure *ServerError
}

// ParseResponse decodes the envelope of an inbound message. A message without
// a string payload parses fine but has an empty Token.
func ParseResponse(data []byte) (*Response, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedResponse)
	}
	resp := &Response{
		Type: root.Get(FieldType).String(),
		Raw:  json.RawMessage(append([]byte(nil), data...)),
	}
	if token := root.Get(FieldPayload); token.Type == gjson.String {
		resp.Token = token.Str
	}
	if resp.Type == TypeError {
		detail := root.Get(FieldError)
		resp.Failure = &ServerError{Token: resp.Token}
		if detail.Exists() {
			resp.Failure.Detail = json.RawMessage(detail.Raw)
		}
	}
	return resp, nil
}

// OK reports whether the response is a success outcome.
func (r *Response) OK() bool {
	return r != nil && r.Failure == nil
}

// ID returns the "id" field, which create responses use for the new entity.
func (r *Response) ID() string {
	return r.Get(FieldID).String()
}

// Get looks up a gjson path in the message.
func (r *Response) Get(path string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Raw, path)
}

// Decode unmarshals the whole message into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Raw) == 0 {
		return fmt.Errorf("%w: empty message", ErrMalformedResponse)
	}
	return json.Unmarshal(r.Raw, v)
}

// ServerError is the failure detail the server attached to an error response.
type ServerError struct {
	Token  string
	Detail json.RawMessage
}

func (e *ServerError) Error() string {
	if len(e.Detail) == 0 {
		return "opennn server error"
	}
	detail := gjson.ParseBytes(e.Detail)
	if detail.Type == gjson.String {
		return "opennn server error: " + detail.Str
	}
	if msg := detail.Get("message"); msg.Type == gjson.String {
		return "opennn server error: " + msg.Str
	}
	return "opennn server error: " + string(e.Detail)
}

// IsServerError returns true if err carries a server-side failure.
func IsServerError(err error) bool {
	var srvErr *ServerError
	return errors.As(err, &srvErr)
}
