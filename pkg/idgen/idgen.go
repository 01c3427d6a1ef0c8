// Package idgen generates the opaque identifiers the purchase pipeline
// hands out: job ids, order ids, and (for tests and admin tooling) sale and
// product ids.
package idgen

import "github.com/google/uuid"

// NewJobID generates a new job identifier.
func NewJobID() string {
	return uuid.NewString()
}

// NewOrderID generates a new order identifier.
func NewOrderID() string {
	return uuid.NewString()
}

// NewID generates a generic opaque identifier.
func NewID() string {
	return uuid.NewString()
}
