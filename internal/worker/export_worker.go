package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"pasti/internal/amqp"
	"pasti/internal/core"
	"pasti/internal/ports"
)

// ExportWorker mirrors recorded entries to an exporter, one message at a
// time, and can rebuild every user's export from the ledgers.
type ExportWorker struct {
	exporter    ports.Exporter
	meals       ports.MealLedger
	weights     ports.WeightLedger
	concurrency int
}

func NewExportWorker(exporter ports.Exporter, meals ports.MealLedger, weights ports.WeightLedger, concurrency int) *ExportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ExportWorker{
		exporter:    exporter,
		meals:       meals,
		weights:     weights,
		concurrency: concurrency,
	}
}

// HandleEntryRecorded exports the record carried by msg.
func (w *ExportWorker) HandleEntryRecorded(ctx context.Context, msg *amqp.EntryRecordedMessage) error {
	u := msg.RecordedUser()
	switch msg.Kind {
	case amqp.KindMeal:
		e := msg.MealEntry()
		if err := w.exporter.AppendMeal(ctx, u, e); err != nil {
			return fmt.Errorf("export meal: %w", err)
		}
		slog.InfoContext(ctx, "Exported meal", "user", u.Key, "date", e.Date, "food", e.FoodName)
	case amqp.KindWeight:
		s := msg.WeightSample()
		if err := w.exporter.AppendWeight(ctx, u, s); err != nil {
			return fmt.Errorf("export weight: %w", err)
		}
		slog.InfoContext(ctx, "Exported weight", "user", u.Key, "date", s.Date)
	default:
		return fmt.Errorf("unknown entry kind %q", msg.Kind)
	}
	return nil
}

// Backfill replaces each user's export with the full content of their
// ledgers. Users are processed concurrently up to the worker's limit; the
// first failure cancels the rest.
func (w *ExportWorker) Backfill(ctx context.Context, users []core.User) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, u := range users {
		g.Go(func() error {
			return w.backfillUser(ctx, u)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("backfill export: %w", err)
	}
	slog.InfoContext(ctx, "Export backfill completed", "users", len(users))
	return nil
}

func (w *ExportWorker) backfillUser(ctx context.Context, u core.User) error {
	meals, err := w.meals.LoadMeals(ctx, u.Key)
	if err != nil {
		return fmt.Errorf("load meals for %s: %w", u.Key, err)
	}
	weights, err := w.weights.LoadWeights(ctx, u.Key)
	if err != nil {
		return fmt.Errorf("load weights for %s: %w", u.Key, err)
	}
	if err := w.exporter.ReplaceMeals(ctx, u, meals); err != nil {
		return fmt.Errorf("replace meals for %s: %w", u.Key, err)
	}
	if err := w.exporter.ReplaceWeights(ctx, u, weights); err != nil {
		return fmt.Errorf("replace weights for %s: %w", u.Key, err)
	}
	slog.InfoContext(ctx, "User export rebuilt",
		"user", u.Key,
		"meals", len(meals),
		"weights", len(weights))
	return nil
}
