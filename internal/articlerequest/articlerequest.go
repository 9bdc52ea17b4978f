package articlerequest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/render"

	"github.com/SergeyParamoshkin/articles/internal/model"
)

// Mode selects how absent fields are treated.
type Mode int

const (
	// ModeStrict requires every recognized field (create, full update).
	ModeStrict Mode = iota
	// ModePartial leaves absent fields unchanged (partial update).
	ModePartial
)

// nolint
var (
	ErrNoJSON        = errors.New("No JSON sent")
	ErrMalformedJSON = errors.New("Malformed JSON")
)

type field struct {
	name   string
	maxLen int
}

// Fields a client may set, in the order errors are reported.
var fields = []field{
	{name: "author", maxLen: model.AuthorMaxLen},
	{name: "content", maxLen: model.ContentMaxLen},
}

// Payload is the raw request body for Article writes. Values stay
// undecoded until Validate so that absent, null and non-string values can
// be told apart.
type Payload map[string]json.RawMessage

// Decode reads the request body and validates it. The returned error is
// always a *model.ValidationError.
func Decode(r *http.Request, mode Mode) (model.ArticlePatch, error) {
	p, err := readPayload(r)
	if err != nil {
		return model.ArticlePatch{}, model.NewValidationError(err)
	}

	return Validate(p, mode)
}

// readPayload accepts exactly one JSON value sent as application/json.
// Empty values (null, false, 0, "", [] and {}) count as no JSON at all.
func readPayload(r *http.Request) (Payload, error) {
	if render.GetContentType(r.Header.Get("Content-Type")) != render.ContentTypeJSON {
		return nil, ErrNoJSON
	}

	dec := json.NewDecoder(r.Body)

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, decodeError(err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrMalformedJSON
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, ErrMalformedJSON
	}

	if isEmpty(v) {
		return nil, ErrNoJSON
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrMalformedJSON
	}

	return p, nil
}

func isEmpty(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	case float64:
		return v == 0
	case string:
		return v == ""
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	}

	return false
}

// Validate checks p against the recognized fields and accumulates every
// problem found.
func Validate(p Payload, mode Mode) (model.ArticlePatch, error) {
	if len(p) == 0 {
		return model.ArticlePatch{}, model.NewValidationError(ErrNoJSON)
	}

	values := make([]model.OptionalString, len(fields))
	errs := make([]error, 0, len(fields))

	for i, f := range fields {
		v, err := f.read(p, mode)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		values[i] = v
	}

	if err := model.NewValidationError(errs...); err != nil {
		return model.ArticlePatch{}, err
	}

	return model.ArticlePatch{Author: values[0], Content: values[1]}, nil
}

func (f field) read(p Payload, mode Mode) (model.OptionalString, error) {
	raw, ok := p[f.name]
	if !ok {
		if mode == ModeStrict {
			return model.None(), fmt.Errorf("Field '%s' not specified", f.name)
		}

		return model.None(), nil
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.None(), fmt.Errorf("Field '%s' is missing or is not a string", f.name)
	}

	s, ok := v.(string)
	if !ok {
		return model.None(), fmt.Errorf("Field '%s' is missing or is not a string", f.name)
	}

	if utf8.RuneCountInString(s) > f.maxLen {
		return model.None(), fmt.Errorf("Field '%s' must be at most %d characters", f.name, f.maxLen)
	}

	return model.Some(s), nil
}

// decodeError maps a failed first Decode. Only an empty body is no JSON.
func decodeError(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrNoJSON
	}

	return ErrMalformedJSON
}
