package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CreditScale is the number of fraction digits stored for credit amounts and prices.
const CreditScale = 4

// ValidateAmount rejects non-positive amounts and amounts finer than CreditScale.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidArgument)
	}
	if !amount.Equal(amount.Truncate(CreditScale)) {
		return fmt.Errorf("%w: amount supports at most %d decimal places", ErrInvalidArgument, CreditScale)
	}
	return nil
}

// ValidatePrice allows zero but rejects negatives and excess precision.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price per unit must not be negative", ErrInvalidArgument)
	}
	if !price.Equal(price.Truncate(CreditScale)) {
		return fmt.Errorf("%w: price supports at most %d decimal places", ErrInvalidArgument, CreditScale)
	}
	return nil
}
