package gateway

import "fmt"

// GatewayError is a failed call to the remote model: transport error,
// timeout, non-2xx answer, or a failed context lookup. Never retried here.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// MalformedReplyError means the model answered but the structured reply could
// not be decoded, even after stripping code fences.
type MalformedReplyError struct {
	Raw string
	Err error
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("gateway: malformed reply: %v", e.Err)
}

func (e *MalformedReplyError) Unwrap() error { return e.Err }
