package budget

import (
	"math"

	"bilancio/internal/core"
)

// ComputedAllocation holds the four bucket amounts produced by running a
// rule set against an income figure. Amounts are cents and may be negative
// when the income itself is negative.
type ComputedAllocation struct {
	FixedCosts core.Money
	Savings    core.Money
	Investment core.Money
	GuiltFree  core.Money
}

// Buckets returns the four amounts in canonical bucket order.
func (c ComputedAllocation) Buckets() [4]core.Money {
	return [4]core.Money{c.FixedCosts, c.Savings, c.Investment, c.GuiltFree}
}

// ComputeAllocation evaluates each bucket rule against the income figure.
// Percentage rules take value as a share of income; fixed rules ignore the
// income entirely. A cap bounds the result from above after evaluation.
// Negative income is not rejected: percentage buckets compute negative
// amounts and the caller decides what that means for the period. The four
// amounts are not required to sum to the income.
func ComputeAllocation(a core.Allocation, income core.Money) ComputedAllocation {
	rules := a.Buckets()
	var amounts [4]core.Money
	for i, r := range rules {
		amounts[i] = evalRule(r, income)
	}
	return ComputedAllocation{
		FixedCosts: amounts[0],
		Savings:    amounts[1],
		Investment: amounts[2],
		GuiltFree:  amounts[3],
	}
}

func evalRule(r core.Rule, income core.Money) core.Money {
	var raw int64
	switch r.Type {
	case core.RuleFixed:
		raw = roundHalfAway(r.Value)
	default: // percentage
		raw = roundHalfAway(float64(income.Cents) * r.Value / 100)
	}
	if r.Cap != nil && raw > r.Cap.Cents {
		raw = r.Cap.Cents
	}
	return core.Money{Cents: raw}
}

// roundHalfAway rounds half away from zero so that negative incomes keep
// their sign instead of drifting toward zero.
func roundHalfAway(v float64) int64 {
	return int64(math.Round(v))
}

// DefaultAllocation is the rule set a user gets on first access: the
// 50/20/10/20 percentage split with no caps.
func DefaultAllocation(userID string) core.Allocation {
	pct := func(v float64) core.Rule {
		return core.Rule{Type: core.RulePercentage, Value: v}
	}
	return core.Allocation{
		UserID:     userID,
		FixedCosts: pct(50),
		Savings:    pct(20),
		Investment: pct(10),
		GuiltFree:  pct(20),
	}
}
