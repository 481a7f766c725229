package service

import "github.com/shopspring/decimal"

var minorUnitsPerMajor = decimal.NewFromInt(100)

// toMinorUnits converts a major-unit amount (rupees) to the gateway's minor unit (paise).
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerMajor).Round(0).IntPart()
}
