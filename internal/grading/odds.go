package grading

import "github.com/shopspring/decimal"

// Aritmética de payout em decimal exato; arredondamento para centavos
// acontece uma única vez, na conversão final.

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Multiplier converte odds americanas no multiplicador de retorno total
// (aposta devolvida inclusa). -150 => 1.6667, +120 => 2.2.
func Multiplier(americanOdds float64) decimal.Decimal {
	odds := decimal.NewFromFloat(americanOdds)
	if odds.IsNegative() {
		return one.Add(hundred.Div(odds.Abs()))
	}
	return one.Add(odds.Div(hundred))
}

// PayoutCents calcula o retorno total em centavos para uma aposta vencedora.
func PayoutCents(stakeCents int64, americanOdds float64) int64 {
	return toCents(decimal.NewFromInt(stakeCents).Mul(Multiplier(americanOdds)))
}

// CombinedPayoutCents calcula o retorno de um parlay: produto dos
// multiplicadores das pernas informadas sobre a aposta original.
func CombinedPayoutCents(stakeCents int64, legOdds []float64) int64 {
	m := one
	for _, o := range legOdds {
		m = m.Mul(Multiplier(o))
	}
	return toCents(decimal.NewFromInt(stakeCents).Mul(m))
}

func toCents(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
