package remote

import "fmt"

// Codes the provider uses for "task not found"-class rejections. A lookup
// that hits one of these may have been issued against the wrong backend
// kind, so the resolver retries it once on the alternate kind.
var notFoundCodes = map[int]bool{
	404: true,
	803: true,
	804: true,
}

// ValidationError reports a local pre-flight failure. It is always raised
// before any network call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// UpstreamRejection reports a provider response whose envelope code is
// non-zero and outside the configured accept list. The remote message is
// passed through untouched.
type UpstreamRejection struct {
	Code    int
	Message string
}

func (e *UpstreamRejection) Error() string {
	return fmt.Sprintf("upstream rejected request: code=%d msg=%q", e.Code, e.Message)
}

// NotFound reports whether the rejection is a "task not found"-class code,
// which makes the call eligible for one cross-backend fallback attempt.
func (e *UpstreamRejection) NotFound() bool {
	return notFoundCodes[e.Code]
}

// TransportError reports a network or timeout failure on an outbound call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
