package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PeriodKey is an ISO year/week pair, written as "2024~37".
type PeriodKey struct {
	Year int
	Week int
}

func PeriodKeyOf(t time.Time) PeriodKey {
	year, week := t.ISOWeek()
	return PeriodKey{Year: year, Week: week}
}

func ParsePeriodKey(raw string) (PeriodKey, error) {
	yearPart, weekPart, ok := strings.Cut(strings.TrimSpace(raw), "~")
	if !ok {
		return PeriodKey{}, fmt.Errorf("invalid period key %q: expected <year>~<week>", raw)
	}

	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return PeriodKey{}, fmt.Errorf("invalid period key %q: year: %w", raw, err)
	}
	week, err := strconv.Atoi(weekPart)
	if err != nil {
		return PeriodKey{}, fmt.Errorf("invalid period key %q: week: %w", raw, err)
	}

	key := PeriodKey{Year: year, Week: week}
	if err := key.Validate(); err != nil {
		return PeriodKey{}, err
	}

	return key, nil
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%d~%d", k.Year, k.Week)
}

func (k PeriodKey) IsZero() bool {
	return k.Year == 0 && k.Week == 0
}

func (k PeriodKey) Validate() error {
	if k.Week < 1 || k.Week > 53 {
		return fmt.Errorf("invalid period key %s: week out of range", k)
	}
	if PeriodKeyOf(k.Monday(time.UTC)) != k {
		return fmt.Errorf("invalid period key %s: year has no week %d", k, k.Week)
	}

	return nil
}

// Monday returns midnight of the first day of the week in loc.
func (k PeriodKey) Monday(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}

	// January 4th always falls in ISO week 1.
	jan4 := time.Date(k.Year, time.January, 4, 0, 0, 0, 0, loc)
	sinceMonday := (int(jan4.Weekday()) + 6) % 7
	firstMonday := jan4.AddDate(0, 0, -sinceMonday)

	return firstMonday.AddDate(0, 0, (k.Week-1)*7)
}

func (k PeriodKey) Next() PeriodKey {
	return PeriodKeyOf(k.Monday(time.UTC).AddDate(0, 0, 7))
}

func (k PeriodKey) Prev() PeriodKey {
	return PeriodKeyOf(k.Monday(time.UTC).AddDate(0, 0, -7))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days from a to b, both midnights in the same
// location. Rounding absorbs DST days of 23 or 25 hours.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
