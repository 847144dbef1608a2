package rbtree

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrAllocation is returned by Insert when no node could be obtained.
	ErrAllocation = errors.New("node allocation failed")
	// ErrNotFound is returned when the requested key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrInvariantViolation is the sentinel wrapped by every InvariantError.
	ErrInvariantViolation = errors.New("red-black invariant violated")
)

// Invariant identifies a structural property checked by Verify.
type Invariant string

// Checked invariants.
const (
	InvariantColor       Invariant = "color"
	InvariantRootBlack   Invariant = "root-black"
	InvariantRedRed      Invariant = "red-red"
	InvariantBlackHeight Invariant = "black-height"
	InvariantOrder       Invariant = "order"
	InvariantParentLink  Invariant = "parent-link"
	InvariantCount       Invariant = "count"
	InvariantDepth       Invariant = "depth"
)

// InvariantError reports the first violation found by Verify.
type InvariantError struct {
	Invariant Invariant
	// Key of the offending node, meaningful when HasKey is set.
	Key    uint32
	HasKey bool
}

func (e *InvariantError) Error() string {
	if !e.HasKey {
		return fmt.Sprintf("%s: %s", ErrInvariantViolation, e.Invariant)
	}

	return fmt.Sprintf("%s: %s at key %d", ErrInvariantViolation, e.Invariant, e.Key)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

func violation(invariant Invariant, key uint32) *InvariantError {
	return &InvariantError{Invariant: invariant, Key: key, HasKey: true}
}
