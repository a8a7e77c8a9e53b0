package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiplier_NegativeOdds(t *testing.T) {
	m, _ := Multiplier(-150).Float64()
	assert.InDelta(t, 1.6667, m, 0.0001)
}

func TestMultiplier_PositiveOdds(t *testing.T) {
	m, _ := Multiplier(120).Float64()
	assert.InDelta(t, 2.2, m, 0.0001)
}

func TestMultiplier_EvenMoney(t *testing.T) {
	m, _ := Multiplier(100).Float64()
	assert.InDelta(t, 2.0, m, 0.0001)
}

// stake 10.00 em -150: retorno 10 * (1 + 100/150) = 16.67
func TestPayoutCents_NegativeOdds(t *testing.T) {
	assert.Equal(t, int64(1667), PayoutCents(1000, -150))
}

func TestPayoutCents_Positive(t *testing.T) {
	assert.Equal(t, int64(5500), PayoutCents(2500, 120))
}

func TestCombinedPayoutCents_TwoLegs(t *testing.T) {
	// 10.00 em duas pernas even money: 10 * 2 * 2 = 40.00
	assert.Equal(t, int64(4000), CombinedPayoutCents(1000, []float64{100, 100}))
}

func TestCombinedPayoutCents_NoLegs(t *testing.T) {
	assert.Equal(t, int64(1000), CombinedPayoutCents(1000, nil))
}
