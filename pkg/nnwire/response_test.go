package nnwire

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseResponse_Success(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"type":"create","payload":"t1","id":"net-1"}`))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !resp.OK() || resp.Failure != nil {
		t.Fatalf("expected success outcome")
	}
	if resp.Type != TypeCreate || resp.Token != "t1" || resp.ID() != "net-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&body); err != nil || body.ID != "net-1" {
		t.Fatalf("Decode: %v %+v", err, body)
	}
}

func TestParseResponse_Failure(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"type":"error","payload":"t1","error":"unknown network"}`, "opennn server error: unknown network"},
		{`{"type":"error","payload":"t1","error":{"message":"bad set"}}`, "opennn server error: bad set"},
		{`{"type":"error","payload":"t1","error":{"code":7}}`, `opennn server error: {"code":7}`},
		{`{"type":"error","payload":"t1"}`, "opennn server error"},
	}
	for _, tc := range cases {
		resp, err := ParseResponse([]byte(tc.raw))
		if err != nil {
			t.Fatalf("ParseResponse(%s): %v", tc.raw, err)
		}
		if resp.OK() || resp.Failure == nil {
			t.Fatalf("expected failure outcome for %s", tc.raw)
		}
		if resp.Failure.Token != "t1" {
			t.Fatalf("failure lost its token")
		}
		if got := resp.Failure.Error(); got != tc.want {
			t.Fatalf("Error() = %q, want %q", got, tc.want)
		}
		if !IsServerError(fmt.Errorf("wrapped: %w", resp.Failure)) {
			t.Fatalf("IsServerError should see through wrapping")
		}
	}
}

func TestParseResponse_TokenMustBeString(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"type":"list","payload":12}`))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Token != "" {
		t.Fatalf("numeric payload must not match a token, got %q", resp.Token)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	for _, raw := range []string{``, `not-json`, `[1,2]`, `"str"`, `{"type":`} {
		if _, err := ParseResponse([]byte(raw)); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("ParseResponse(%q): expected ErrMalformedResponse, got %v", raw, err)
		}
	}
}

func TestParseResponse_CopiesInput(t *testing.T) {
	buf := []byte(`{"type":"list","payload":"t1"}`)
	resp, err := ParseResponse(buf)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	copy(buf, `{"type":"XXXX"`)
	if resp.Get("type").String() != "list" {
		t.Fatalf("response aliases the read buffer")
	}
}
