package flatfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"pasti/internal/core"
)

func TestCatalogLoadCreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), CatalogFile)
	c := NewCatalog(path)

	items, problems, err := c.Load(context.Background())
	if err != nil || len(items) != 0 || len(problems) != 0 {
		t.Fatalf("unexpected load: items=%v problems=%v err=%v", items, problems, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("catalog not created: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("unexpected empty catalog %q", data)
	}
}

func TestCatalogRegisterThenLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), CatalogFile)
	f := core.NewFoodItem("Maçã", 52, "100g")

	updated, err := NewCatalog(path).Register(ctx, f)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !reflect.DeepEqual(updated, []core.FoodItem{f}) {
		t.Fatalf("unexpected updated catalog: %v", updated)
	}

	items, problems, err := NewCatalog(path).Load(ctx)
	if err != nil || len(problems) != 0 {
		t.Fatalf("load: problems=%v err=%v", problems, err)
	}
	if !reflect.DeepEqual(items, []core.FoodItem{f}) {
		t.Fatalf("expected [%v], got %v", f, items)
	}

	data, _ := os.ReadFile(path)
	want := "[\n  {\n    \"nome\": \"Maçã\",\n    \"calorias_p100g\": 52.0,\n    \"porcao\": \"100g\"\n  }\n]"
	if string(data) != want {
		t.Fatalf("unexpected file content:\n%s", data)
	}
}

func TestCatalogRejectsCaseInsensitiveDuplicate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), CatalogFile)
	c := NewCatalog(path)
	if _, err := c.Register(ctx, core.NewFoodItem("Maçã", 52, "")); err != nil {
		t.Fatalf("register: %v", err)
	}
	before, _ := os.ReadFile(path)

	items, err := c.Register(ctx, core.NewFoodItem("maçã", 99, ""))
	if !errors.Is(err, core.ErrDuplicateFood) || !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected duplicate validation error, got %v", err)
	}
	if len(items) != 1 || items[0].CaloriesPer100g != 52 {
		t.Fatalf("catalog changed: %v", items)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatalf("catalog file changed on duplicate")
	}
}

func TestCatalogSaveLoadIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), CatalogFile)
	legacy := `[{"nome":"Feijão","calorias":76},{"nome":"Ovo","calorias_p100g":155,"porcao":""},{"nome":"x"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCatalog(path)

	var snapshots [][]byte
	for i := 0; i < 2; i++ {
		items, _, err := c.Load(ctx)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if err := c.Save(ctx, items); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		data, _ := os.ReadFile(path)
		snapshots = append(snapshots, data)
	}
	if !bytes.Equal(snapshots[0], snapshots[1]) {
		t.Fatalf("save(load()) not idempotent:\n%s\n---\n%s", snapshots[0], snapshots[1])
	}
	if items := c.Items(); len(items) != 2 || items[1].Portion != core.DefaultPortion {
		t.Fatalf("unexpected cached items: %v", items)
	}
}

func TestCatalogInvalidJSONIsNonFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), CatalogFile)
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	items, problems, err := NewCatalog(path).Load(context.Background())
	if err != nil {
		t.Fatalf("invalid JSON must not be fatal: %v", err)
	}
	if len(items) != 0 || len(problems) != 1 {
		t.Fatalf("expected no items and one problem, got %v %v", items, problems)
	}
}

func TestCatalogStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCatalog(filepath.Join(blocker, CatalogFile))
	_, err := c.Register(context.Background(), core.NewFoodItem("Maçã", 52, ""))
	var se *core.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
