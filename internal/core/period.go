package core

import (
	"fmt"
	"time"
)

// Period is a single calendar month+year tracking window. It is a value
// type: derived once from a timestamp and never mutated. Balances are keyed
// by it; it is not persisted as its own entity.
type Period struct {
	Year  int
	Month int // 1-12
}

// Clock supplies wall-clock time. Production code uses SystemClock; tests
// inject a fixed clock to simulate month boundaries deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	Time time.Time
}

func (c FixedClock) Now() time.Time { return c.Time }

// CurrentPeriod derives the tracking period the given clock is in. Two calls
// within the same calendar month under the same clock return equal periods.
func CurrentPeriod(clock Clock) Period {
	now := clock.Now()
	return Period{Year: now.Year(), Month: int(now.Month())}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("invalid month %d", p.Month)
	}
	if p.Year < 1 {
		return fmt.Errorf("invalid year %d", p.Year)
	}
	return nil
}

func (p Period) Equal(other Period) bool {
	return p.Year == other.Year && p.Month == other.Month
}

// Before orders periods lexicographically on (year, month).
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Previous returns the immediately preceding calendar month.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Next returns the immediately following calendar month.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
