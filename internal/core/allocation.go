package core

import (
	"errors"
	"fmt"
	"time"
)

// RuleType selects how an allocation rule's value is interpreted.
type RuleType string

const (
	// RulePercentage interprets Value as a share of income in [0, 100].
	RulePercentage RuleType = "percentage"
	// RuleFixed interprets Value as an absolute amount in cents.
	RuleFixed RuleType = "fixed"
)

type (
	// Rule is one bucket definition of a fund allocation. Cap, when set,
	// bounds the computed amount after percentage/fixed evaluation.
	Rule struct {
		Type  RuleType
		Value float64
		Cap   *Money
	}

	// Allocation is a user's configured rule set for splitting net income
	// into the four buckets. Updates replace the whole value; buckets are
	// never merged individually.
	Allocation struct {
		UserID     string
		FixedCosts Rule
		Savings    Rule
		Investment Rule
		GuiltFree  Rule
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

var (
	ErrUnknownRuleType = errors.New("unknown rule type")
	ErrNegativeValue   = errors.New("value must be non-negative")
	ErrPercentRange    = errors.New("percentage must be between 0 and 100")
	ErrNegativeCap     = errors.New("cap must be non-negative")
)

// BucketNames lists the four buckets in their canonical order.
var BucketNames = [4]string{"fixedCosts", "savings", "investment", "guiltFreeSpending"}

// Buckets returns the four rules in canonical bucket order.
func (a Allocation) Buckets() [4]Rule {
	return [4]Rule{a.FixedCosts, a.Savings, a.Investment, a.GuiltFree}
}

func (r Rule) Validate() error {
	switch r.Type {
	case RulePercentage:
		if r.Value < 0 || r.Value > 100 {
			return ErrPercentRange
		}
	case RuleFixed:
		if r.Value < 0 {
			return ErrNegativeValue
		}
	default:
		return ErrUnknownRuleType
	}
	if r.Cap != nil && r.Cap.Cents < 0 {
		return ErrNegativeCap
	}
	return nil
}

// Validate checks every bucket and names the first offending one.
func (a Allocation) Validate() error {
	if a.UserID == "" {
		return ErrEmptyUser
	}
	rules := a.Buckets()
	for i, name := range BucketNames {
		if err := rules[i].Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
