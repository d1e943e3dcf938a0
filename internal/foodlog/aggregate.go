package foodlog

import (
	"sort"
	"time"

	"mcp-food-log/internal/models"
)

// All aggregates are recomputed from the entry slice on every call.

// Totals sums every entry ever logged, regardless of day.
func (l *Log) Totals() models.Macros {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum models.Macros
	for i := range l.entries {
		sum = sum.Add(l.entries[i].Macros())
	}
	return sum
}

func (l *Log) TotalCalories() int { return l.Totals().Calories }
func (l *Log) TotalProtein() int  { return l.Totals().Protein }
func (l *Log) TotalCarbs() int    { return l.Totals().Carbs }
func (l *Log) TotalFat() int      { return l.Totals().Fat }

// TotalsOnDate sums entries whose timestamp falls on d's calendar day.
func (l *Log) TotalsOnDate(d time.Time) models.Macros {
	var sum models.Macros
	for _, e := range l.EntriesOnDate(d) {
		sum = sum.Add(e.Macros())
	}
	return sum
}

func (l *Log) CaloriesOnDate(d time.Time) int { return l.TotalsOnDate(d).Calories }
func (l *Log) ProteinOnDate(d time.Time) int  { return l.TotalsOnDate(d).Protein }
func (l *Log) CarbsOnDate(d time.Time) int    { return l.TotalsOnDate(d).Carbs }
func (l *Log) FatOnDate(d time.Time) int      { return l.TotalsOnDate(d).Fat }

func (l *Log) HasEntryOnDate(d time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	day := l.dayOf(d)
	for i := range l.entries {
		if l.dayOf(l.entries[i].Timestamp) == day {
			return true
		}
	}
	return false
}

func (l *Log) EntriesOnDate(d time.Time) []models.FoodEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	day := l.dayOf(d)
	var out []models.FoodEntry
	for i := range l.entries {
		if l.dayOf(l.entries[i].Timestamp) == day {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// EntriesBetween returns entries from the calendar day of from through the
// calendar day of to, inclusive, in log order.
func (l *Log) EntriesBetween(from, to time.Time) []models.FoodEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start, end := l.dayOf(from), l.dayOf(to)
	var out []models.FoodEntry
	for i := range l.entries {
		day := l.dayOf(l.entries[i].Timestamp)
		if !day.Before(start) && !day.After(end) {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// MostRecent returns the last n appended entries, oldest first.
func (l *Log) MostRecent(n int) []models.FoodEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 {
		return []models.FoodEntry{}
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]models.FoodEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

func (l *Log) Entries() []models.FoodEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.FoodEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Summary is the day-scoped view behind the home screen rings.
func (l *Log) Summary(d time.Time, goals models.DailyGoals) models.DaySummary {
	entries := l.EntriesOnDate(d)
	var consumed models.Macros
	for _, e := range entries {
		consumed = consumed.Add(e.Macros())
	}
	return models.NewDaySummary(l.dayOf(d).Format("2006-01-02"), consumed, goals, len(entries))
}

// ActiveDays lists the distinct calendar days holding at least one entry,
// as local midnights in ascending order.
func (l *Log) ActiveDays() []time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[time.Time]struct{})
	var days []time.Time
	for i := range l.entries {
		day := l.dayOf(l.entries[i].Timestamp)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Streak counts consecutive days with entries ending on asOf's day.
func (l *Log) Streak(asOf time.Time) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	logged := make(map[time.Time]struct{}, len(l.entries))
	for i := range l.entries {
		logged[l.dayOf(l.entries[i].Timestamp)] = struct{}{}
	}

	streak := 0
	for day := l.dayOf(asOf); ; day = l.dayOf(day.AddDate(0, 0, -1)) {
		if _, ok := logged[day]; !ok {
			return streak
		}
		streak++
	}
}

// dayOf truncates t to the start of its day in the log's calendar. The
// result is comparable with == and usable as a map key. Where midnight is
// skipped by a DST change the day starts at the first valid instant, so
// step between days through dayOf rather than AddDate alone.
func (l *Log) dayOf(t time.Time) time.Time {
	y, m, d := t.In(l.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, l.loc)
}
