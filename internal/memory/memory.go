package memory

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"pasti/internal/core"
	"pasti/internal/ports"
)

var (
	_ ports.FoodCatalog  = (*Store)(nil)
	_ ports.MealLedger   = (*Store)(nil)
	_ ports.WeightLedger = (*Store)(nil)
)

// Store keeps the catalog and every ledger in process memory.
type Store struct {
	mu      sync.Mutex
	foods   []core.FoodItem
	meals   map[string][]core.MealEntry
	weights map[string][]core.WeightSample
}

func New(foods []core.FoodItem) *Store {
	s := &Store{
		meals:   map[string][]core.MealEntry{},
		weights: map[string][]core.WeightSample{},
	}
	for _, f := range foods {
		if updated, err := core.RegisterFood(s.foods, f); err == nil {
			s.foods = updated
		}
	}
	return s
}

// NewFromFiles seeds the catalog from base/seed_foods.txt, one
// name|calories|portion per line.
func NewFromFiles(base string) *Store {
	foods := readSeedFoods(filepath.Join(base, "seed_foods.txt"))
	if len(foods) == 0 {
		foods = []core.FoodItem{
			core.NewFoodItem("Arroz", 130, ""),
			core.NewFoodItem("Feijão", 76, ""),
			core.NewFoodItem("Maçã", 52, "1 unidade"),
		}
	}
	return New(foods)
}

func (s *Store) Load(_ context.Context) ([]core.FoodItem, []*core.ParseError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.foods), nil, nil
}

func (s *Store) Save(_ context.Context, items []core.FoodItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foods = slices.Clone(items)
	return nil
}

func (s *Store) Register(_ context.Context, candidate core.FoodItem) ([]core.FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated, err := core.RegisterFood(s.foods, candidate)
	if err != nil {
		return slices.Clone(s.foods), err
	}
	s.foods = updated
	return slices.Clone(updated), nil
}

func (s *Store) AppendMeal(_ context.Context, userKey string, e core.MealEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meals[userKey] = append(s.meals[userKey], e)
	return nil
}

func (s *Store) LoadMeals(_ context.Context, userKey string) ([]core.MealEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.meals[userKey]), nil
}

func (s *Store) AppendWeight(_ context.Context, userKey string, w core.WeightSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights[userKey] = append(s.weights[userKey], w)
	return nil
}

func (s *Store) LoadWeights(_ context.Context, userKey string) ([]core.WeightSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.weights[userKey]), nil
}

func readSeedFoods(path string) []core.FoodItem {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.FoodItem
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			slog.Warn("Seed food line skipped", "path", path, "line", line)
			continue
		}
		kcal, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			slog.Warn("Seed food line skipped", "path", path, "line", line, "error", err)
			continue
		}
		portion := ""
		if len(parts) > 2 {
			portion = parts[2]
		}
		out = append(out, core.NewFoodItem(parts[0], kcal, portion))
	}
	return out
}
