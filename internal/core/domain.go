package core

import (
	"errors"
	"strings"
	"time"
)

type (
	Money struct {
		Cents int64
	}

	// Category is one budget category a user tracks spending against.
	// Limit is the configured monthly budget for the category.
	Category struct {
		ID           string
		UserID       string
		Name         string
		Limit        Money
		DisplayOrder int
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// CategoryBalance accumulates one category's spend within exactly one
	// tracking period for exactly one user. The limit is a snapshot taken
	// when the row is materialized, so later edits to the category's
	// configured limit do not rewrite past periods.
	CategoryBalance struct {
		ID         string
		UserID     string
		CategoryID string
		Period     Period
		Spent      Money
		Limit      Money
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// EnrichedBalance is a CategoryBalance joined with its category name and
	// the derived remaining/over-budget view the dashboard renders.
	EnrichedBalance struct {
		CategoryBalance
		CategoryName string
		Remaining    Money
		OverBudget   bool
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty category name")
	ErrEmptyUser          = errors.New("empty user id")
	ErrCategoryMissing    = errors.New("category missing")
	ErrAllocationNotFound = errors.New("allocation not found")
)

// Remaining returns the budget left in the period. May be negative.
func (b CategoryBalance) Remaining() Money {
	return Money{Cents: b.Limit.Cents - b.Spent.Cents}
}

// OverBudget reports whether spending exceeds the limit. Spending exactly
// the limit is not over budget.
func (b CategoryBalance) OverBudget() bool {
	return b.Spent.Cents > b.Limit.Cents
}

// Enrich computes the derived dashboard view for a balance row.
func (b CategoryBalance) Enrich(categoryName string) EnrichedBalance {
	return EnrichedBalance{
		CategoryBalance: b,
		CategoryName:    categoryName,
		Remaining:       b.Remaining(),
		OverBudget:      b.OverBudget(),
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrEmptyUser
	}
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	if c.Limit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}
