package httpclient

import (
	"fmt"

	"github.com/igwedaniel/dripper/internal/proxy"
)

// RequestFailed is returned once Send gives up
type RequestFailed struct {
	Attempts int
	Proxy    *proxy.Descriptor
	Cause    error
}

func (e *RequestFailed) Error() string {
	return fmt.Sprintf("request failed after %d attempts with proxy %s: %v", e.Attempts, proxy.Describe(e.Proxy), e.Cause)
}

func (e *RequestFailed) Unwrap() error {
	return e.Cause
}

// StatusError is an HTTP response with status >= 400
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	const max = 256
	body := string(e.Body)
	if len(body) > max {
		body = body[:max] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}
