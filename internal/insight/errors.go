package insight

import "fmt"

// ValidationError reports input that makes a request pointless, such as an
// empty agent selection. No network call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Reason }

// RequestError wraps any failure of the completion call itself.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	if e == nil || e.Err == nil {
		return "analysis request failed"
	}
	return fmt.Sprintf("analysis request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
