package ports

import (
	"context"

	"pasti/internal/core"
)

// Ports for the tracker's stores and outbound adapters. Ledger methods take
// the normalized user key (core.User.Key).
type (
	FoodCatalog interface {
		// Load re-reads the catalog. Records that cannot be understood are
		// returned as problems and left out of the items.
		Load(ctx context.Context) (items []core.FoodItem, problems []*core.ParseError, err error)
		// Save replaces the whole persisted catalog.
		Save(ctx context.Context, items []core.FoodItem) error
		// Register adds candidate and returns the updated catalog.
		Register(ctx context.Context, candidate core.FoodItem) ([]core.FoodItem, error)
	}

	MealLedger interface {
		AppendMeal(ctx context.Context, userKey string, e core.MealEntry) error
		LoadMeals(ctx context.Context, userKey string) ([]core.MealEntry, error)
	}

	WeightLedger interface {
		AppendWeight(ctx context.Context, userKey string, s core.WeightSample) error
		LoadWeights(ctx context.Context, userKey string) ([]core.WeightSample, error)
	}

	// Exporter mirrors ledger records to an external destination.
	Exporter interface {
		AppendMeal(ctx context.Context, u core.User, e core.MealEntry) error
		AppendWeight(ctx context.Context, u core.User, s core.WeightSample) error
		// ReplaceMeals and ReplaceWeights overwrite everything exported for u.
		ReplaceMeals(ctx context.Context, u core.User, entries []core.MealEntry) error
		ReplaceWeights(ctx context.Context, u core.User, samples []core.WeightSample) error
	}

	// EventPublisher announces ledger appends to other processes.
	EventPublisher interface {
		PublishMealLogged(ctx context.Context, u core.User, e core.MealEntry) error
		PublishWeightLogged(ctx context.Context, u core.User, s core.WeightSample) error
	}
)
