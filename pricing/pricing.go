// Package pricing computes checkout quotes and converts USD totals into the
// chain's native currency.
package pricing

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storerunner/storefront/types"
)

var (
	DefaultFeeRate     = decimal.RequireFromString("0.02")
	DefaultShippingFee = decimal.NewFromInt(13)
	DefaultUSDRate     = decimal.NewFromInt(3050)
)

// weiExponent is the number of decimals of the native currency.
const weiExponent = 18

// Oracle supplies the USD price of one unit of native currency.
type Oracle interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// StaticOracle serves a configured rate.
type StaticOracle struct {
	rate decimal.Decimal
}

func NewStaticOracle(rate decimal.Decimal) (*StaticOracle, error) {
	if !rate.IsPositive() {
		return nil, types.NewError(types.KindValidation, fmt.Sprintf("exchange rate must be positive, got %s", rate), nil)
	}
	return &StaticOracle{rate: rate}, nil
}

func (o *StaticOracle) Rate(context.Context) (decimal.Decimal, error) {
	return o.rate, nil
}

// Calculator applies the solver fee and flat shipping fee.
type Calculator struct {
	feeRate  decimal.Decimal
	shipping decimal.Decimal
}

func NewCalculator(feeRate, shipping decimal.Decimal) *Calculator {
	return &Calculator{feeRate: feeRate, shipping: shipping}
}

func DefaultCalculator() *Calculator {
	return NewCalculator(DefaultFeeRate, DefaultShippingFee)
}

// Quote returns fees = total*feeRate + shipping and final = total + fees,
// each rounded to the cent.
func (c *Calculator) Quote(total decimal.Decimal) types.Quote {
	total = total.Round(2)
	fees := total.Mul(c.feeRate).Add(c.shipping).Round(2)
	final := total.Add(fees)
	return types.Quote{
		Total:          total,
		Fees:           fees,
		Final:          final,
		FormattedTotal: FormatUSD(total),
		FormattedFees:  FormatUSD(fees),
		FormattedFinal: FormatUSD(final),
	}
}

// ToNative converts a USD amount to wei at rate USD per native unit,
// truncating toward zero.
func ToNative(amount, rate decimal.Decimal) (*big.Int, error) {
	if !rate.IsPositive() {
		return nil, fmt.Errorf("exchange rate must be positive")
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	return amount.Shift(weiExponent).Div(rate).Truncate(0).BigInt(), nil
}

// FromNative converts wei to USD at rate, rounded to the cent.
func FromNative(wei *big.Int, rate decimal.Decimal) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -weiExponent).Mul(rate).Round(2)
}

// FormatUSD renders d like en-US currency formatting: "$1,234.50", "-$5.00".
func FormatUSD(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
