package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pasti/internal/core"
)

func TestMemoryStoreRegisterAndLedgers(t *testing.T) {
	ctx := context.Background()
	s := New([]core.FoodItem{
		core.NewFoodItem("Arroz", 130, ""),
		core.NewFoodItem("arroz", 1, ""),
	})
	items, _, err := s.Load(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("duplicates must be dropped at seed: %v %v", items, err)
	}

	if _, err := s.Register(ctx, core.NewFoodItem("ARROZ", 10, "")); !errors.Is(err, core.ErrDuplicateFood) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	items, err = s.Register(ctx, core.NewFoodItem("Maçã", 52, ""))
	if err != nil || len(items) != 2 {
		t.Fatalf("unexpected register: %v %v", items, err)
	}

	e := core.NewMealEntry("2024-01-01", "Almoço", "Maçã", 150, 52)
	if err := s.AppendMeal(ctx, "milena", e); err != nil {
		t.Fatal(err)
	}
	meals, _ := s.LoadMeals(ctx, "milena")
	if len(meals) != 1 || meals[0].Calories != 78 {
		t.Fatalf("unexpected meals: %v", meals)
	}
	if other, _ := s.LoadMeals(ctx, "raul"); len(other) != 0 {
		t.Fatalf("ledger leaked: %v", other)
	}

	if err := s.AppendWeight(ctx, "raul", core.WeightSample{Date: "2024-01-01", WeightKg: 70}); err != nil {
		t.Fatal(err)
	}
	weights, _ := s.LoadWeights(ctx, "raul")
	if len(weights) != 1 || weights[0].WeightKg != 70 {
		t.Fatalf("unexpected weights: %v", weights)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	items, _, _ := s.Load(context.Background())
	if len(items) == 0 {
		t.Fatalf("expected defaults when seed file is missing")
	}

	content := "# name|kcal|portion\nPão|265|1 fatia\nOvo|155\nruim\nLeite|x\nOvo|1\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_foods.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s = NewFromFiles(dir)
	items, _, _ = s.Load(context.Background())
	if len(items) != 2 {
		t.Fatalf("unexpected seeded foods: %v", items)
	}
	if items[0].Name != "Pão" || items[0].Portion != "1 fatia" || items[1].Portion != core.DefaultPortion {
		t.Fatalf("unexpected seeded foods: %v", items)
	}
}
