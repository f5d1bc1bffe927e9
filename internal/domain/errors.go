package domain

import (
	"errors"
)

// Kind classifies a domain failure so transports can map it without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindForbidden
	KindInvalidState
	KindInsufficientBalance
	KindInsufficientAvailableBalance
	KindInsufficientSellerBalance
	KindAmountExceedsListing
	KindContention
	KindNotEligible
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotFound:
		return "NotFound"
	case KindForbidden:
		return "Forbidden"
	case KindInvalidState:
		return "InvalidState"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindInsufficientAvailableBalance:
		return "InsufficientAvailableBalance"
	case KindInsufficientSellerBalance:
		return "InsufficientSellerBalance"
	case KindAmountExceedsListing:
		return "AmountExceedsListing"
	case KindContention:
		return "Contention"
	case KindNotEligible:
		return "NotEligible"
	default:
		return "Unknown"
	}
}

// Error is a sentinel carrying its Kind. Services wrap these with fmt.Errorf("%w: ...").
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidArgument              = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrNotFound                     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden                    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidState                 = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrInsufficientBalance          = &Error{Kind: KindInsufficientBalance, Message: "insufficient balance"}
	ErrInsufficientAvailableBalance = &Error{Kind: KindInsufficientAvailableBalance, Message: "insufficient available balance"}
	ErrInsufficientSellerBalance    = &Error{Kind: KindInsufficientSellerBalance, Message: "seller has insufficient balance"}
	ErrAmountExceedsListing         = &Error{Kind: KindAmountExceedsListing, Message: "amount exceeds listing"}
	ErrContention                   = &Error{Kind: KindContention, Message: "resource busy, retry"}
	ErrNotEligible                  = &Error{Kind: KindNotEligible, Message: "not eligible"}
)

// KindOf returns the Kind of the first domain Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return KindOf(err) == KindContention
}
