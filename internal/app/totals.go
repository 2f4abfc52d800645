package app

import (
    "context"
    "fmt"

    "github.com/shopspring/decimal"
)

const currencySymbol = "€"

type Total struct {
    Amount    decimal.Decimal
    Formatted string
}

// TotalDonated sums every ledger entry from both channels. Nothing is cached.
func (s *Service) TotalDonated(ctx context.Context) (Total, error) {
    amount, err := s.store.TotalDonated(ctx)
    if err != nil {
        return Total{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
    }
    return Total{
        Amount:    amount,
        Formatted: FormatAmount(amount),
    }, nil
}

// FormatAmount renders an amount as euros with two decimals, e.g. €4.25.
func FormatAmount(amount decimal.Decimal) string {
    return currencySymbol + amount.StringFixed(2)
}
