package cpsdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrInvalidBaseURL = errors.New("sdk: invalid base url")
	ErrDaemonDown     = errors.New("sdk: daemon not reachable")
)

// Codes returned by the control plane
const (
	CodeBadRequest   = "ERR_BAD_REQUEST"
	CodeNotFound     = "ERR_NOT_FOUND"
	CodeConflict     = "ERR_CONFLICT"
	CodeUnauthorized = "ERR_UNAUTHORIZED"
	CodeUnknownError = "ERR_UNKNOWN_ERROR"
)

// APIError is the control plane's error body
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the control plane
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeNotFound
}

// IsConflict reports whether err is a 409 from the control plane
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeConflict
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%s: %w: %w", operation, ErrDaemonDown, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok && err.Code != "" {
			err.Status = resp.StatusCode
			return fmt.Errorf("%s: %w", operation, err)
		}
		return fmt.Errorf("%s: %w", operation, &APIError{
			Status:  resp.StatusCode,
			Code:    CodeUnknownError,
			Message: http.StatusText(resp.StatusCode),
		})
	}

	return nil
}
