package review

import "errors"

// Sentinel errors for the review package.
// Use errors.Is to check: errors.Is(err, review.ErrIllegalTransition)
var (
	ErrInvalidItemState  = errors.New("review: invalid item state")
	ErrIllegalTransition = errors.New("review: illegal transition")
	ErrInvalidConfig     = errors.New("review: invalid scheduler config")
)
