package pricing

import (
	"fmt"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/shopspring/decimal"
)

type PricedLine struct {
	domain.CartLine
	EffectiveUnitPrice decimal.Decimal `json:"effective_unit_price"`
	LineTotal          decimal.Decimal `json:"line_total"`
}

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// DisplayTotals holds totals formatted for display.
type DisplayTotals struct {
	Subtotal   string `json:"subtotal"`
	TaxAmount  string `json:"tax_amount"`
	GrandTotal string `json:"grand_total"`
}

func (t Totals) Display() DisplayTotals {
	return DisplayTotals{
		Subtotal:   Format(t.Subtotal),
		TaxAmount:  Format(t.TaxAmount),
		GrandTotal: Format(t.GrandTotal),
	}
}

// Aggregator folds cart lines into totals at a fixed tax rate.
// It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	taxRate decimal.Decimal
}

func NewAggregator(taxRate decimal.Decimal) (*Aggregator, error) {
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("%w: negative tax rate %s", ErrInvalidInput, taxRate)
	}
	return &Aggregator{taxRate: taxRate}, nil
}

func (a *Aggregator) TaxRate() decimal.Decimal {
	return a.taxRate
}

// Aggregate prices every line and sums them. A single invalid line fails the
// whole cart so that totals never disagree with the lines shown next to them.
// Priced lines come back in input order.
func (a *Aggregator) Aggregate(lines []domain.CartLine) ([]PricedLine, Totals, error) {
	priced := make([]PricedLine, 0, len(lines))
	subtotal := decimal.Zero

	for i, line := range lines {
		effective, err := EffectiveUnitPrice(line.UnitPrice, line.Plan)
		if err != nil {
			return nil, Totals{}, fmt.Errorf("line %d (product %d): %w", i, line.ProductID, err)
		}
		total, err := LineTotal(line.UnitPrice, line.Plan, line.Quantity)
		if err != nil {
			return nil, Totals{}, fmt.Errorf("line %d (product %d): %w", i, line.ProductID, err)
		}
		priced = append(priced, PricedLine{
			CartLine:           line,
			EffectiveUnitPrice: effective,
			LineTotal:          total,
		})
		subtotal = subtotal.Add(total)
	}

	tax := subtotal.Mul(a.taxRate)
	return priced, Totals{
		Subtotal:   subtotal,
		TaxAmount:  tax,
		GrandTotal: subtotal.Add(tax),
	}, nil
}
