package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Op names the remote call that failed.
type Op string

const (
	OpAuthenticate  Op = "authenticate"
	OpCertificates  Op = "certificates"
	OpChallenge     Op = "challenge"
	OpAuthorize     Op = "authorize"
	OpSign          Op = "sign"
	OpFetchDocument Op = "fetch-document"
)

var opFailures = map[Op]string{
	OpAuthenticate:  "authentication failed",
	OpCertificates:  "certificate retrieval failed",
	OpChallenge:     "challenge request failed",
	OpAuthorize:     "authorization failed",
	OpSign:          "signing failed",
	OpFetchDocument: "document fetch failed",
}

type Kind string

const (
	// KindNetwork covers connection, DNS and timeout failures.
	KindNetwork Kind = "network"
	// KindUpstream is a non-2xx answer from the service.
	KindUpstream Kind = "upstream"
	// KindParse is a response that is not the expected JSON.
	KindParse Kind = "parse"
)

// Error is returned by every remote call of the Client.
type Error struct {
	Op         Op
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindParse {
		return fmt.Sprintf("response parse failed (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", opFailures[e.Op], e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a client error, or "" for other errors.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return ""
}

type UnexpectedResponseContentTypeError struct {
	ContentType string
	Body        []byte
}

func (e *UnexpectedResponseContentTypeError) Error() string {
	return fmt.Sprintf("unexpected response content type: %s", e.ContentType)
}

type UnexpectedResponseCodeError struct {
	Code int
	Body []byte
}

func (e *UnexpectedResponseCodeError) Error() string {
	if msg := upstreamMessage(e.Body); msg != "" {
		return fmt.Sprintf("unexpected response code: %d: %s", e.Code, msg)
	}
	return fmt.Sprintf("unexpected response code: %d", e.Code)
}

const maxMessageLength = 512

// upstreamMessage extracts the human readable part of an error body.
func upstreamMessage(body []byte) string {
	var structured map[string]any
	if err := json.Unmarshal(body, &structured); err == nil {
		for _, key := range []string{"message", "error_description", "detail", "title", "error"} {
			if s, ok := structured[key].(string); ok && s != "" {
				return s
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength] + "..."
	}
	return msg
}
