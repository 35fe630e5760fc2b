package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/components/options"
	"github.com/goliatone/go-crudkit/pkg/apperr"
	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/media"
	"github.com/goliatone/go-crudkit/pkg/query"
	"github.com/goliatone/go-crudkit/pkg/render"
	"github.com/goliatone/go-crudkit/pkg/table"
)

// statusClientClosed is reported for requests whose context was canceled.
const statusClientClosed = 499

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// requestError is a malformed request: bad JSON, a bad filter, a missing
// parameter. Its text is safe to show.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &requestError{err: fmt.Errorf(format, args...)}
}

func notFound(message string) error {
	e := apperr.New(apperr.CodeNotFound, errors.New(message))
	e.Message = message
	return e
}

func unauthenticated() error {
	return apperr.New(apperr.CodeUnauthenticated, nil)
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnw("encode response", "error", err)
	}
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// errorResponse classifies err into a status and envelope.
func errorResponse(err error) (int, errorBody) {
	var (
		verr   *form.ValidationError
		ierr   *table.ImportError
		lerr   *media.SelectionLimitError
		rerr   *requestError
		aerr   *apperr.Error
		status options.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, errorBody{
			Code:    string(apperr.CodeInvalidArgument),
			Message: "Some fields are not valid.",
			Fields:  render.ErrorPayload(verr),
		}
	case errors.As(err, &ierr):
		return http.StatusBadRequest, errorBody{Code: string(apperr.CodeInvalidArgument), Message: ierr.Error()}
	case errors.As(err, &lerr):
		return http.StatusBadRequest, errorBody{Code: string(apperr.CodeInvalidArgument), Message: lerr.Error()}
	case errors.As(err, &rerr):
		return http.StatusBadRequest, errorBody{Code: string(apperr.CodeInvalidArgument), Message: rerr.Error()}
	case errors.Is(err, query.ErrGroupRange):
		return http.StatusBadRequest, errorBody{Code: string(apperr.CodeInvalidArgument), Message: err.Error()}
	case errors.As(err, &aerr):
		body := errorBody{Code: string(aerr.Code), Message: aerr.Message}
		if aerr.Field != "" {
			body.Fields = render.ErrorPayload(aerr)
		}
		return aerr.StatusCode(), body
	case errors.Is(err, context.Canceled):
		return statusClientClosed, errorBody{Code: string(apperr.CodeCanceled), Message: apperr.Message(apperr.New(apperr.CodeCanceled, err))}
	case errors.As(err, &status):
		return status.StatusCode(), errorBody{Code: string(apperr.CodeUnknown), Message: http.StatusText(status.StatusCode())}
	}
	return http.StatusInternalServerError, errorBody{Code: string(apperr.CodeUnknown), Message: apperr.Message(err)}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(r.Context()).Errorw("request failed", "error", err)
	} else {
		loggerFrom(r.Context()).Debugw("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}
