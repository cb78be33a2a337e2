package settlement

import "github.com/shopspring/decimal"

var (
	supplierRate    = decimal.RequireFromString("0.80")
	distributorRate = decimal.RequireFromString("0.15")
)

// Shares is a three-way split of one reservation total in minor units.
type Shares struct {
	Supplier    int64 `json:"supplier_cents"`
	Distributor int64 `json:"distributor_cents"`
	Platform    int64 `json:"platform_cents"`
}

func (s Shares) Total() int64 { return s.Supplier + s.Distributor + s.Platform }

// Split divides total into supplier (80%), distributor (15%) and platform
// (5%) shares.  Supplier and distributor round half up; the platform takes
// the remainder so the shares always add up to total.  Negative totals split
// to zero.
func Split(total int64) Shares {
	if total <= 0 {
		return Shares{}
	}
	t := decimal.NewFromInt(total)
	supplier := t.Mul(supplierRate).Round(0).IntPart()
	distributor := t.Mul(distributorRate).Round(0).IntPart()
	if distributor > total-supplier {
		distributor = total - supplier
	}
	return Shares{
		Supplier:    supplier,
		Distributor: distributor,
		Platform:    total - supplier - distributor,
	}
}

// FormatCents renders a minor-unit amount as a decimal string, 10880 → "108.80".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
