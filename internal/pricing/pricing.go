// Package pricing turns unit prices and subscription plans into chargeable
// amounts. All arithmetic is decimal; nothing is rounded before Format.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid input")

// DefaultTaxRate is used when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.20")

var monthsPerYear = decimal.NewFromInt(12)

// EffectiveUnitPrice applies the plan to a unit price. Yearly plans are billed
// twelve months up front; every other plan, including an empty or unknown one,
// leaves the price unchanged.
func EffectiveUnitPrice(unitPrice decimal.Decimal, plan domain.SubscriptionPlan) (decimal.Decimal, error) {
	if unitPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative unit price %s", ErrInvalidInput, unitPrice)
	}
	if plan == domain.PlanYearly {
		return unitPrice.Mul(monthsPerYear), nil
	}
	return unitPrice, nil
}

func LineTotal(unitPrice decimal.Decimal, plan domain.SubscriptionPlan, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidInput, quantity)
	}
	effective, err := EffectiveUnitPrice(unitPrice, plan)
	if err != nil {
		return decimal.Zero, err
	}
	return effective.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// ParsePlan is the strict form used at input boundaries: unknown plan names
// are rejected instead of being priced as pass-through. An empty string is
// accepted and means no plan.
func ParsePlan(s string) (domain.SubscriptionPlan, error) {
	p := domain.SubscriptionPlan(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case "", domain.PlanMonthly, domain.PlanYearly, domain.PlanPerUser, domain.PlanPerMachine:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown subscription plan %q", ErrInvalidInput, s)
}

// CurrencyPlaces is the precision amounts are charged and displayed with.
// Computation never rounds; only Round and Format do.
const CurrencyPlaces = 2

// Round rounds an amount to currency precision, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CurrencyPlaces)
}

// Format renders an amount with currency precision.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(CurrencyPlaces)
}
