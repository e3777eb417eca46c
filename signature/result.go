package signature

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hm-edu/remotesign/catalog"
	"github.com/hm-edu/remotesign/client"
	"github.com/hm-edu/remotesign/placement"
)

type FailureKind string

const (
	KindNetwork       FailureKind = "network"
	KindUpstream      FailureKind = "upstream"
	KindParse         FailureKind = "parse"
	KindLocal         FailureKind = "local"
	KindConfiguration FailureKind = "configuration"
	KindStorage       FailureKind = "storage"
)

var ErrMissingInput = errors.New("missing required input")

func missing(names ...string) error {
	return fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(names, ", "))
}

type Failure struct {
	Kind    FailureKind
	Message string
	// Original is the untouched upstream payload when it could not be
	// transformed.
	Original json.RawMessage
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func failureOf(err error) *Failure {
	f := &Failure{Kind: KindLocal, Message: err.Error()}
	var cerr *client.Error
	var terr *catalog.TransformError
	switch {
	case errors.As(err, &cerr):
		f.Kind = FailureKind(cerr.Kind)
	case errors.As(err, &terr):
		f.Original = terr.Original
	case errors.Is(err, placement.ErrCustomRectRequired),
		errors.Is(err, placement.ErrInvalidRect),
		errors.Is(err, ErrMissingInput):
		f.Kind = KindConfiguration
	}
	return f
}

// Result is either a value or a failure, never both.
type Result[T any] struct {
	Value   T
	Failure *Failure
}

func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Fail[T any](f *Failure) Result[T] {
	return Result[T]{Failure: f}
}

func (r Result[T]) IsOK() bool {
	return r.Failure == nil
}

// Unwrap returns the value, or the failure as an error.
func (r Result[T]) Unwrap() (T, error) {
	if r.Failure != nil {
		var zero T
		return zero, r.Failure
	}
	return r.Value, nil
}

type failurePayload struct {
	Type     string          `json:"type" yaml:"type"`
	Kind     FailureKind     `json:"kind" yaml:"kind"`
	Content  string          `json:"content" yaml:"content"`
	Original json.RawMessage `json:"original_data,omitempty" yaml:"-"`
}

func (r Result[T]) payload() any {
	if r.Failure == nil {
		return r.Value
	}
	return failurePayload{
		Type:     "error",
		Kind:     r.Failure.Kind,
		Content:  r.Failure.Message,
		Original: r.Failure.Original,
	}
}

// MarshalJSON renders the value itself on success and
// {"type":"error","kind":...,"content":...} on failure.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.payload())
}

func (r Result[T]) MarshalYAML() (any, error) {
	return r.payload(), nil
}
