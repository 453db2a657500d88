package domain

import "time"

// WeekItem is implemented by values stored in week buckets. WithSpan returns
// a copy of the item covering [start, end), used when an item is split per
// calendar day.
type WeekItem[T any] interface {
	ItemID() string
	Span() (start, end time.Time)
	WithSpan(start, end time.Time) T
}

type Day[T any] struct {
	Date  time.Time
	Items []T
}

type WeekBucket[T any] struct {
	Period PeriodKey
	Days   [7]Day[T]
}

// Items returns every item of the week, Monday first.
func (w WeekBucket[T]) Items() []T {
	count := 0
	for _, day := range w.Days {
		count += len(day.Items)
	}

	items := make([]T, 0, count)
	for _, day := range w.Days {
		items = append(items, day.Items...)
	}

	return items
}

type WeekState[T any] struct {
	Weeks []WeekBucket[T]
}

func (s WeekState[T]) Week(key PeriodKey) (WeekBucket[T], bool) {
	for _, week := range s.Weeks {
		if week.Period == key {
			return week, true
		}
	}

	return WeekBucket[T]{}, false
}

// WeekReducer holds the pure transitions of a weekly-bucketed domain. Day
// boundaries are computed in Location.
type WeekReducer[T WeekItem[T]] struct {
	Location *time.Location
}

func NewWeekReducer[T WeekItem[T]](loc *time.Location) WeekReducer[T] {
	return WeekReducer[T]{Location: loc}
}

func (r WeekReducer[T]) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

func (r WeekReducer[T]) EmptyWeek(key PeriodKey) WeekBucket[T] {
	monday := key.Monday(r.location())

	week := WeekBucket[T]{Period: key}
	for i := range week.Days {
		week.Days[i] = Day[T]{Date: monday.AddDate(0, 0, i)}
	}

	return week
}

// PeriodOf returns the week containing the start of item.
func (r WeekReducer[T]) PeriodOf(item T) PeriodKey {
	start, _ := item.Span()
	return PeriodKeyOf(start.In(r.location()))
}

// BuildWeek creates the bucket for key and files every raw item under the
// day(s) it covers. Pieces falling outside the week are dropped.
func (r WeekReducer[T]) BuildWeek(key PeriodKey, raw []T) WeekBucket[T] {
	week := r.EmptyWeek(key)
	for _, item := range raw {
		if !validItem(item) {
			continue
		}
		week = r.insert(week, item)
	}

	return week
}

// UpsertWeek replaces the week with the same period or appends it. Other
// weeks keep their position.
func (r WeekReducer[T]) UpsertWeek(weeks []WeekBucket[T], week WeekBucket[T]) []WeekBucket[T] {
	next := make([]WeekBucket[T], len(weeks), len(weeks)+1)
	copy(next, weeks)

	for i := range next {
		if next[i].Period == week.Period {
			next[i] = week
			return next
		}
	}

	return append(next, week)
}

// ApplyDelta merges a pushed change. Deltas for weeks that were never
// fetched and items missing an identifier or bounds leave weeks unchanged.
func (r WeekReducer[T]) ApplyDelta(weeks []WeekBucket[T], item T, removed bool) []WeekBucket[T] {
	index := r.deltaTarget(weeks, item)
	if index < 0 {
		return weeks
	}

	week := r.remove(weeks[index], item.ItemID())
	if !removed {
		week = r.insert(week, item)
	}

	next := make([]WeekBucket[T], len(weeks))
	copy(next, weeks)
	next[index] = week

	return next
}

// CanApply reports whether ApplyDelta would change anything for item.
func (r WeekReducer[T]) CanApply(weeks []WeekBucket[T], item T) bool {
	return r.deltaTarget(weeks, item) >= 0
}

func (r WeekReducer[T]) deltaTarget(weeks []WeekBucket[T], item T) int {
	if !validItem(item) {
		return -1
	}

	key := r.PeriodOf(item)
	for i := range weeks {
		if weeks[i].Period == key {
			return i
		}
	}

	return -1
}

// Trim keeps only the weeks before, containing and after today.
func (r WeekReducer[T]) Trim(weeks []WeekBucket[T], today time.Time) []WeekBucket[T] {
	current := PeriodKeyOf(today.In(r.location()))
	keep := map[PeriodKey]struct{}{
		current.Prev(): {},
		current:        {},
		current.Next(): {},
	}

	trimmed := make([]WeekBucket[T], 0, len(keep))
	for _, week := range weeks {
		if _, ok := keep[week.Period]; ok {
			trimmed = append(trimmed, week)
		}
	}

	return trimmed
}

// Split cuts item at every midnight it crosses. Days are half-open, so an
// item ending exactly at midnight stays on the previous day.
func (r WeekReducer[T]) Split(item T) []T {
	loc := r.location()
	start, end := item.Span()

	first := startOfDay(start, loc)
	last := startOfDay(end, loc)
	if end.Equal(last) && end.After(start) {
		last = last.AddDate(0, 0, -1)
	}
	if !last.After(first) {
		return []T{item}
	}

	pieces := make([]T, 0, daysBetween(first, last)+1)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		pieceStart := day
		if day.Equal(first) {
			pieceStart = start
		}
		pieceEnd := day.AddDate(0, 0, 1)
		if day.Equal(last) {
			pieceEnd = end
		}
		pieces = append(pieces, item.WithSpan(pieceStart, pieceEnd))
	}

	return pieces
}

func (r WeekReducer[T]) insert(week WeekBucket[T], item T) WeekBucket[T] {
	week = r.remove(week, item.ItemID())

	loc := r.location()
	monday := week.Days[0].Date
	for _, piece := range r.Split(item) {
		start, _ := piece.Span()
		offset := daysBetween(monday, startOfDay(start, loc))
		if offset < 0 || offset > 6 {
			continue
		}
		week.Days[offset].Items = appendItem(week.Days[offset].Items, piece)
	}

	return week
}

func (r WeekReducer[T]) remove(week WeekBucket[T], id string) WeekBucket[T] {
	for i, day := range week.Days {
		if !containsID(day.Items, id) {
			continue
		}

		kept := make([]T, 0, len(day.Items))
		for _, existing := range day.Items {
			if existing.ItemID() != id {
				kept = append(kept, existing)
			}
		}
		week.Days[i].Items = kept
	}

	return week
}

// appendItem keeps source order within a day and never writes into a
// backing array shared with an earlier snapshot.
func appendItem[T WeekItem[T]](items []T, item T) []T {
	next := make([]T, 0, len(items)+1)
	next = append(next, items...)
	return append(next, item)
}

func containsID[T WeekItem[T]](items []T, id string) bool {
	for _, item := range items {
		if item.ItemID() == id {
			return true
		}
	}
	return false
}

func validItem[T WeekItem[T]](item T) bool {
	if item.ItemID() == "" {
		return false
	}

	start, end := item.Span()
	if start.IsZero() || end.IsZero() {
		return false
	}

	return !end.Before(start)
}
