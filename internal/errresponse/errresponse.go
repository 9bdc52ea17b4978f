package errresponse

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/SergeyParamoshkin/articles/internal/model"
)

// ErrResponse renderer type for handling all sorts of errors.
//
// Err keeps the low-level error for logging; only ErrorText or Errors
// reach the client.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	ErrorText string   `json:"error,omitempty"`  // single message, e.g. not found
	Errors    []string `json:"errors,omitempty"` // validation messages
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)

	return nil
}

// ErrInvalidRequest reports every validation message with 400.
func ErrInvalidRequest(err *model.ValidationError) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		Errors:         err.Messages(),
	}
}

// ErrNotFound reports a missing article with 404.
func ErrNotFound(err *model.NotFoundError) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusNotFound,
		ErrorText:      err.Error(),
	}
}

// ErrArticleNotFound is ErrNotFound for an id that is not a valid int64.
func ErrArticleNotFound(id string) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusNotFound,
		ErrorText:      fmt.Sprintf("article %s not found", id),
	}
}

func ErrRender(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnprocessableEntity,
		ErrorText:      "error rendering response",
	}
}

// ErrInternal hides err from the client.
func ErrInternal(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		ErrorText:      "internal server error",
	}
}

// From maps a store or validation error to its response.
func From(err error) render.Renderer {
	var (
		verr *model.ValidationError
		nf   *model.NotFoundError
	)

	switch {
	case errors.As(err, &verr):
		return ErrInvalidRequest(verr)
	case errors.As(err, &nf):
		return ErrNotFound(nf)
	default:
		return ErrInternal(err)
	}
}

// nolint
var (
	ErrRouteNotFound    = &ErrResponse{HTTPStatusCode: http.StatusNotFound, ErrorText: "not found"}
	ErrMethodNotAllowed = &ErrResponse{HTTPStatusCode: http.StatusMethodNotAllowed, ErrorText: "method not allowed"}
)
