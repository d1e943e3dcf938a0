package main

import (
	"mcp-food-log/internal/foodlog"
	"mcp-food-log/internal/storage"
)

type entryStore interface {
	foodlog.Store
	Close() error
}

var openStore = func(path string) (entryStore, error) {
	return storage.NewSQLiteStorage(path)
}

// openFoodLog builds the food log, backed by a SQLite file when dbPath is
// set. The returned close func releases the store and is never nil. On
// error nothing is left open.
func openFoodLog(dbPath string) (*foodlog.Log, func() error, error) {
	noop := func() error { return nil }
	if dbPath == "" {
		l, err := foodlog.New()
		return l, noop, err
	}

	store, err := openStore(dbPath)
	if err != nil {
		return nil, noop, err
	}

	l, err := foodlog.New(foodlog.WithStore(store))
	if err != nil {
		_ = store.Close()
		return nil, noop, err
	}
	return l, store.Close, nil
}
