package domain

import "github.com/shopspring/decimal"

// Cents is the number of decimal places every posted amount is rounded to.
const Cents int32 = 2

// Round2 rounds half away from zero to whole cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Cents)
}
