package model

import "github.com/oklog/ulid/v2"

// NewRequestID generates a ULID used to correlate a single outbound
// provider call across logs and the X-Request-Id header.
func NewRequestID() string {
	return ulid.Make().String()
}
