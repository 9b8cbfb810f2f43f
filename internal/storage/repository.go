package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pasti/internal/core"
	"pasti/internal/ports"

	_ "modernc.org/sqlite"
)

var (
	_ ports.FoodCatalog  = (*SQLiteRepository)(nil)
	_ ports.MealLedger   = (*SQLiteRepository)(nil)
	_ ports.WeightLedger = (*SQLiteRepository)(nil)
)

// SQLiteRepository stores the catalog and the ledgers in one SQLite database.
// Ledger order is insertion order (row id).
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return r.storageErr("ping", err)
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context) ([]core.FoodItem, []*core.ParseError, error) {
	items, err := listFoods(ctx, r.db)
	if err != nil {
		return nil, nil, r.storageErr("list foods", err)
	}
	return items, nil, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, items []core.FoodItem) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM foods`); err != nil {
			return err
		}
		for _, it := range items {
			if err := insertFood(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.storageErr("save foods", err)
	}
	return nil
}

// Register checks the candidate against the stored catalog and inserts it
// within one transaction.
func (r *SQLiteRepository) Register(ctx context.Context, candidate core.FoodItem) ([]core.FoodItem, error) {
	var (
		updated     []core.FoodItem
		validateErr error
	)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		current, err := listFoods(ctx, tx)
		if err != nil {
			return err
		}
		updated, validateErr = core.RegisterFood(current, candidate)
		if validateErr != nil {
			return nil
		}
		return insertFood(ctx, tx, candidate)
	})
	if err != nil {
		return nil, r.storageErr("register food", err)
	}
	if validateErr != nil {
		return updated, validateErr
	}

	slog.InfoContext(ctx, "Food saved to SQLite",
		"name", candidate.Name,
		"calories_per_100g", candidate.CaloriesPer100g,
		"portion", candidate.Portion)

	return updated, nil
}

func (r *SQLiteRepository) AppendMeal(ctx context.Context, userKey string, e core.MealEntry) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO meals (user_key, date, slot, food_name, quantity_grams, calories) VALUES (?, ?, ?, ?, ?, ?)`,
		userKey, e.Date, e.Slot, e.FoodName, e.QuantityGrams, e.Calories)
	if err != nil {
		return r.storageErr("append meal", err)
	}
	id, _ := res.LastInsertId()

	slog.InfoContext(ctx, "Meal saved to SQLite",
		"id", id,
		"user", userKey,
		"date", e.Date,
		"food", e.FoodName,
		"calories", e.Calories)
	return nil
}

func (r *SQLiteRepository) LoadMeals(ctx context.Context, userKey string) ([]core.MealEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, slot, food_name, quantity_grams, calories FROM meals WHERE user_key = ? ORDER BY id`,
		userKey)
	if err != nil {
		return nil, r.storageErr("list meals", err)
	}
	defer rows.Close()

	var out []core.MealEntry
	for rows.Next() {
		var e core.MealEntry
		if err := rows.Scan(&e.Date, &e.Slot, &e.FoodName, &e.QuantityGrams, &e.Calories); err != nil {
			return nil, r.storageErr("scan meal", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storageErr("list meals", err)
	}
	return out, nil
}

func (r *SQLiteRepository) AppendWeight(ctx context.Context, userKey string, s core.WeightSample) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO weights (user_key, date, weight_kg) VALUES (?, ?, ?)`,
		userKey, s.Date, s.WeightKg); err != nil {
		return r.storageErr("append weight", err)
	}
	slog.InfoContext(ctx, "Weight saved to SQLite",
		"user", userKey,
		"date", s.Date,
		"weight_kg", s.WeightKg)
	return nil
}

func (r *SQLiteRepository) LoadWeights(ctx context.Context, userKey string) ([]core.WeightSample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, weight_kg FROM weights WHERE user_key = ? ORDER BY id`,
		userKey)
	if err != nil {
		return nil, r.storageErr("list weights", err)
	}
	defer rows.Close()

	var out []core.WeightSample
	for rows.Next() {
		var s core.WeightSample
		if err := rows.Scan(&s.Date, &s.WeightKg); err != nil {
			return nil, r.storageErr("scan weight", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.storageErr("list weights", err)
	}
	return out, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listFoods(ctx context.Context, q queryer) ([]core.FoodItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, calories_per_100g, portion FROM foods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.FoodItem
	for rows.Next() {
		var f core.FoodItem
		if err := rows.Scan(&f.Name, &f.CaloriesPer100g, &f.Portion); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func insertFood(ctx context.Context, tx *sql.Tx, f core.FoodItem) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO foods (name, calories_per_100g, portion) VALUES (?, ?, ?)`,
		f.Name, f.CaloriesPer100g, f.Portion)
	return err
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) storageErr(op string, err error) error {
	return &core.StorageError{Op: op, Path: r.path, Err: err}
}
