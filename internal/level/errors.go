package level

import "errors"

// Error taxonomy for price-level operations (see SPEC_FULL.md External
// Interfaces / Error Handling Design). Callers dispatch on these sentinel
// values with errors.Is; the string returned by Error() is the wire tag.
var (
	ErrPriceMismatch      = errors.New("PriceMismatch")
	ErrZeroQuantity       = errors.New("ZeroQuantity")
	ErrPostOnlyWouldCross = errors.New("PostOnlyWouldCross")
	ErrNotFound           = errors.New("NotFound")
	ErrExpired            = errors.New("Expired")
	ErrInvalidDescriptor  = errors.New("InvalidDescriptor")
	ErrOverflow           = errors.New("Overflow")
	ErrFillOrKillShort    = errors.New("FillOrKillInsufficientLiquidity")
)
