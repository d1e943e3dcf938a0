// internal/foodlog/log.go
package foodlog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"mcp-food-log/internal/models"
)

var ErrNotFound = errors.New("entry not found")

// Store persists entries behind the in-memory log. Optional.
type Store interface {
	SaveEntry(entry *models.FoodEntry) error
	DeleteEntry(id string) error
	LoadEntries() ([]models.FoodEntry, error)
}

type ChangeKind string

const (
	EntryAdded   ChangeKind = "added"
	EntryRemoved ChangeKind = "removed"
)

type Change struct {
	Kind  ChangeKind       `json:"kind"`
	Entry models.FoodEntry `json:"entry"`
}

// Log is the ordered food log. Entries are kept in append order, so the
// most recent entries are at the tail.
type Log struct {
	mu      sync.RWMutex
	entries []models.FoodEntry
	loc     *time.Location
	store   Store

	// notifyMu is taken before mu is released so subscribers see
	// changes in mutation order.
	notifyMu sync.Mutex
	subMu    sync.Mutex
	subs     map[int]func(Change)
	nextID   int
}

type Option func(*Log)

// WithLocation sets the calendar used for day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(l *Log) {
		if loc != nil {
			l.loc = loc
		}
	}
}

func WithStore(s Store) Option {
	return func(l *Log) {
		l.store = s
	}
}

func New(opts ...Option) (*Log, error) {
	l := &Log{
		loc:  time.Local,
		subs: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.store != nil {
		entries, err := l.store.LoadEntries()
		if err != nil {
			return nil, fmt.Errorf("failed to load entries: %w", err)
		}
		l.entries = entries
	}

	return l, nil
}

func (l *Log) Location() *time.Location {
	return l.loc
}

// Add appends the entry as-is.
func (l *Log) Add(entry models.FoodEntry) error {
	l.mu.Lock()
	if l.store != nil {
		if err := l.store.SaveEntry(&entry); err != nil {
			l.mu.Unlock()
			return fmt.Errorf("failed to save entry: %w", err)
		}
	}
	l.entries = append(l.entries, entry)
	l.unlockAndNotify(Change{Kind: EntryAdded, Entry: entry})
	return nil
}

// Record turns an estimate into a new entry and appends it.
func (l *Log) Record(est models.NutritionEstimate, capturedAt time.Time, image []byte) (models.FoodEntry, error) {
	entry := models.NewFoodEntry(est, capturedAt, image)
	if err := l.Add(entry); err != nil {
		return models.FoodEntry{}, err
	}
	return entry, nil
}

func (l *Log) RemoveAt(index int) (models.FoodEntry, error) {
	l.mu.Lock()
	if index < 0 || index >= len(l.entries) {
		n := len(l.entries)
		l.mu.Unlock()
		return models.FoodEntry{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrNotFound, index, n)
	}
	removed, err := l.removeLocked(index)
	if err != nil {
		l.mu.Unlock()
		return models.FoodEntry{}, err
	}

	l.unlockAndNotify(Change{Kind: EntryRemoved, Entry: removed})
	return removed, nil
}

func (l *Log) Remove(id string) (models.FoodEntry, error) {
	l.mu.Lock()
	index := -1
	for i := range l.entries {
		if l.entries[i].ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		l.mu.Unlock()
		return models.FoodEntry{}, fmt.Errorf("%w: id %q", ErrNotFound, id)
	}
	removed, err := l.removeLocked(index)
	if err != nil {
		l.mu.Unlock()
		return models.FoodEntry{}, err
	}

	l.unlockAndNotify(Change{Kind: EntryRemoved, Entry: removed})
	return removed, nil
}

func (l *Log) removeLocked(index int) (models.FoodEntry, error) {
	removed := l.entries[index]
	if l.store != nil {
		if err := l.store.DeleteEntry(removed.ID); err != nil {
			return models.FoodEntry{}, fmt.Errorf("failed to delete entry: %w", err)
		}
	}

	copy(l.entries[index:], l.entries[index+1:])
	l.entries[len(l.entries)-1] = models.FoodEntry{}
	l.entries = l.entries[:len(l.entries)-1]

	return removed, nil
}

// Subscribe registers fn to be called after every successful mutation,
// one change at a time in the order the mutations happened. fn may read
// the log but must not mutate it, and should return quickly since the
// next writer waits for it. The returned func unregisters it.
func (l *Log) Subscribe(fn func(Change)) func() {
	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.subMu.Unlock()

	return func() {
		l.subMu.Lock()
		delete(l.subs, id)
		l.subMu.Unlock()
	}
}

// unlockAndNotify releases mu, which must be write-locked, and delivers c.
func (l *Log) unlockAndNotify(c Change) {
	l.notifyMu.Lock()
	l.mu.Unlock()
	defer l.notifyMu.Unlock()
	l.notify(c)
}

func (l *Log) notify(c Change) {
	l.subMu.Lock()
	fns := make([]func(Change), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
