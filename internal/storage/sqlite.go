// internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"mcp-food-log/internal/models"
)

// SQLiteStorage keeps food entries across restarts. It satisfies
// foodlog.Store.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS food_entries (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT NOT NULL UNIQUE,
        food_name TEXT NOT NULL,
        calories INTEGER NOT NULL,
        protein INTEGER NOT NULL,
        carbs INTEGER NOT NULL,
        fat INTEGER NOT NULL,
        timestamp TEXT NOT NULL,
        image BLOB,
        health_score INTEGER,
        ingredients TEXT NOT NULL DEFAULT ''
    );

    CREATE INDEX IF NOT EXISTS idx_food_entries_timestamp ON food_entries(timestamp);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) SaveEntry(entry *models.FoodEntry) error {
	query := `
        INSERT INTO food_entries (id, food_name, calories, protein, carbs, fat, timestamp, image, health_score, ingredients)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	var healthScore sql.NullInt64
	if entry.HealthScore != nil {
		healthScore = sql.NullInt64{Int64: int64(*entry.HealthScore), Valid: true}
	}

	_, err := s.db.Exec(query,
		entry.ID, entry.FoodName, entry.Calories, entry.Protein, entry.Carbs, entry.Fat,
		entry.Timestamp.Format(time.RFC3339Nano), entry.Image, healthScore, entry.Ingredients)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) DeleteEntry(id string) error {
	res, err := s.db.Exec(`DELETE FROM food_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entry %s not stored", id)
	}

	return nil
}

// LoadEntries returns every stored entry in insertion order.
func (s *SQLiteStorage) LoadEntries() ([]models.FoodEntry, error) {
	query := `
        SELECT id, food_name, calories, protein, carbs, fat, timestamp, image, health_score, ingredients
        FROM food_entries
        ORDER BY seq
    `

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.FoodEntry
	for rows.Next() {
		var entry models.FoodEntry
		var timestampStr string
		var healthScore sql.NullInt64

		err := rows.Scan(
			&entry.ID, &entry.FoodName, &entry.Calories, &entry.Protein, &entry.Carbs, &entry.Fat,
			&timestampStr, &entry.Image, &healthScore, &entry.Ingredients)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		if entry.Timestamp, err = time.Parse(time.RFC3339Nano, timestampStr); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		if healthScore.Valid {
			v := int(healthScore.Int64)
			entry.HealthScore = &v
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	return entries, nil
}
