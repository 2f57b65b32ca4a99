// Package nnwire defines the JSON envelope exchanged with an OpenNN server.
//
// Requests are operation descriptors: a JSON object with a "type" discriminator,
// operation-specific fields, and a "payload" correlation token attached by the
// session right before transmission. Responses echo the token in "payload" and
// are either a success (any type other than "error") or a failure carrying the
// server's detail in "error".
package nnwire

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
)

// Request types understood by the server.
const (
	TypeCreate        = "create"
	TypeDestroy       = "destroy"
	TypeTrain         = "train"
	TypeActivate      = "activate"
	TypeSave          = "save"
	TypeLoad          = "load"
	TypeClearNetworks = "clear-networks"
	TypeClearTrainers = "clear-trainers"
	TypeClear         = "clear"
	TypeList          = "list"

	// TypeError is the response discriminator for failed requests.
	TypeError = "error"
)

// Envelope field names.
const (
	FieldType    = "type"
	FieldPayload = "payload"
	FieldError   = "error"
	FieldID      = "id"
)

var (
	ErrEmptyRequest = errors.New("nnwire: request cannot be empty")
	ErrMissingType  = errors.New("nnwire: request has no type field")
)

// Request is an operation descriptor prior to token attachment.
type Request map[string]any

// Type returns the declared operation type, or "" if there is none.
func (r Request) Type() string {
	t, _ := r[FieldType].(string)
	return t
}

// Validate reports whether the descriptor can be sent.
func (r Request) Validate() error {
	if len(r) == 0 {
		return ErrEmptyRequest
	}
	raw, ok := r[FieldType]
	if !ok {
		return ErrMissingType
	}
	t, ok := raw.(string)
	if !ok || strings.TrimSpace(t) == "" {
		return ErrMissingType
	}
	return nil
}

// Encode returns the wire form of the request tagged with token. Nil-valued
// fields are left out. The receiver is not modified.
func (r Request) Encode(token string) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	msg := make(map[string]any, len(r)+1)
	for k, v := range r {
		if isNil(v) {
			continue
		}
		msg[k] = v
	}
	msg[FieldPayload] = token
	return json.Marshal(msg)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
