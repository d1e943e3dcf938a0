package analysis

import (
	"errors"
	"fmt"
)

// Every failure returned by Client.Analyze matches exactly one of these
// with errors.Is. None are retried.
var (
	ErrEncoding          = errors.New("image could not be encoded")
	ErrTransport         = errors.New("analysis request failed")
	ErrHTTP              = errors.New("analysis service returned an error status")
	ErrEmptyResponse     = errors.New("analysis service returned an empty response")
	ErrMalformedResponse = errors.New("analysis response is malformed")
	ErrSchema            = errors.New("analysis content does not match the nutrition schema")
	ErrNoFoodDetected    = errors.New("no food detected")
)

// HTTPError carries the status and body of a non-2xx reply.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}
