package flatfile

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"pasti/internal/core"
	"pasti/internal/ports"
)

// CatalogFile is the catalog document name inside the data directory.
const CatalogFile = "alimentos.json"

var _ ports.FoodCatalog = (*Catalog)(nil)

// Catalog owns the food list mirrored to a JSON file. Load is the explicit
// reload and Save the explicit persist; callers hold a reference to the
// store instead of sharing a global.
type Catalog struct {
	mu    sync.Mutex
	path  string
	items []core.FoodItem
}

func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

// Path returns the catalog file location.
func (c *Catalog) Path() string {
	return c.path
}

// Items returns the foods as of the last Load, Save or Register.
func (c *Catalog) Items() []core.FoodItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Load reads the catalog. When no file exists an empty catalog is written
// and returned. Invalid records are skipped and reported, never fatal.
func (c *Catalog) Load(ctx context.Context) ([]core.FoodItem, []*core.ParseError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	items, problems, err := c.loadLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range problems {
		slog.WarnContext(ctx, "Catalog record skipped",
			"path", c.path,
			"record", p.Record,
			"reason", p.Reason)
	}
	return slices.Clone(items), problems, nil
}

// Save rewrites the whole catalog file with items.
func (c *Catalog) Save(ctx context.Context, items []core.FoodItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked(items)
}

// Register re-reads the catalog, rejects candidate when its name is already
// present (case-insensitively) and otherwise persists the extended catalog.
// On error the persisted catalog is untouched.
func (c *Catalog) Register(ctx context.Context, candidate core.FoodItem) ([]core.FoodItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, _, err := c.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := core.RegisterFood(current, candidate)
	if err != nil {
		return slices.Clone(current), err
	}
	if err := c.saveLocked(updated); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Food registered in catalog",
		"name", candidate.Name,
		"calories_per_100g", candidate.CaloriesPer100g,
		"portion", candidate.Portion,
		"total", len(updated))

	return slices.Clone(updated), nil
}

func (c *Catalog) loadLocked(ctx context.Context) ([]core.FoodItem, []*core.ParseError, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.InfoContext(ctx, "Catalog file missing, creating empty catalog", "path", c.path)
		if err := c.saveLocked(nil); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, &core.StorageError{Op: "read", Path: c.path, Err: err}
	}

	items, problems := decodeCatalog(filepath.Base(c.path), data)
	c.items = items
	return items, problems, nil
}

func (c *Catalog) saveLocked(items []core.FoodItem) error {
	if dir := filepath.Dir(c.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &core.StorageError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	if err := os.WriteFile(c.path, encodeCatalog(items), 0o644); err != nil {
		return &core.StorageError{Op: "write", Path: c.path, Err: err}
	}
	c.items = slices.Clone(items)
	return nil
}
