package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"pasti/internal/core"
	applog "pasti/internal/log"
	"pasti/internal/ports"
)

// LatestSamples is how many recent weights a trend reports separately.
const LatestSamples = 5

// TrackerService runs the user-triggered operations over the catalog and the
// ledgers. Every call re-reads persisted state.
type TrackerService struct {
	users     []core.User
	catalog   ports.FoodCatalog
	meals     ports.MealLedger
	weights   ports.WeightLedger
	publisher ports.EventPublisher
	events    *applog.StructuredLogger
	now       func() time.Time
}

type (
	RegisterFoodInput struct {
		Name            string
		CaloriesPer100g float64
		Portion         string
	}

	// LogMealInput names the food by catalog name; an empty Date is today.
	LogMealInput struct {
		User          string
		Date          string
		Slot          string
		Food          string
		QuantityGrams float64
	}

	LogWeightInput struct {
		User     string
		Date     string
		WeightKg float64
	}

	// FoodList is the catalog plus the records that had to be skipped.
	FoodList struct {
		Items    []core.FoodItem
		Problems []*core.ParseError
	}

	WeightTrend struct {
		Samples []core.WeightSample
		Latest  []core.WeightSample
		// BMI is only filled when a height was given.
		BMI []core.BMIPoint
	}

	Profile struct {
		WeightKg    float64
		HeightCm    float64
		BMI         float64
		Class       core.BMIClass
		WaterLiters float64
		Cups        int
	}
)

// NewTrackerService wires the stores. publisher may be nil.
func NewTrackerService(users []core.User, catalog ports.FoodCatalog, meals ports.MealLedger, weights ports.WeightLedger, publisher ports.EventPublisher) *TrackerService {
	return &TrackerService{
		users:     slices.Clone(users),
		catalog:   catalog,
		meals:     meals,
		weights:   weights,
		publisher: publisher,
		events:    applog.NewStructuredLogger(applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentTracker})),
		now:       time.Now,
	}
}

// WithClock replaces the clock used for default dates.
func (s *TrackerService) WithClock(now func() time.Time) *TrackerService {
	s.now = now
	return s
}

func (s *TrackerService) Users() []core.User {
	return slices.Clone(s.users)
}

// User resolves a name or key among the configured users.
func (s *TrackerService) User(name string) (core.User, error) {
	key := core.UserKey(name)
	for _, u := range s.users {
		if u.Key == key {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("%w: %q", core.ErrUnknownUser, name)
}

func (s *TrackerService) Foods(ctx context.Context) (FoodList, error) {
	items, problems, err := s.catalog.Load(ctx)
	if err != nil {
		return FoodList{}, fmt.Errorf("load catalog: %w", err)
	}
	return FoodList{Items: items, Problems: problems}, nil
}

func (s *TrackerService) RegisterFood(ctx context.Context, in RegisterFoodInput) ([]core.FoodItem, error) {
	candidate := core.NewFoodItem(in.Name, in.CaloriesPer100g, in.Portion)
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	items, err := s.catalog.Register(ctx, candidate)
	if err != nil {
		return items, fmt.Errorf("register food: %w", err)
	}
	s.events.LogFoodRegistered(ctx, candidate, len(items))
	return items, nil
}

// LogMeal resolves the food in the catalog, computes its calories and
// appends it to the user's ledger.
func (s *TrackerService) LogMeal(ctx context.Context, in LogMealInput) (core.MealEntry, error) {
	u, err := s.User(in.User)
	if err != nil {
		return core.MealEntry{}, err
	}
	date, err := s.date(in.Date)
	if err != nil {
		return core.MealEntry{}, err
	}
	slot, err := core.ParseMealSlot(in.Slot)
	if err != nil {
		return core.MealEntry{}, err
	}
	if !(in.QuantityGrams > 0) {
		return core.MealEntry{}, fmt.Errorf("%w: %v g", core.ErrInvalidQuantity, in.QuantityGrams)
	}

	items, _, err := s.catalog.Load(ctx)
	if err != nil {
		return core.MealEntry{}, fmt.Errorf("load catalog: %w", err)
	}
	food, ok := core.FindFood(items, in.Food)
	if !ok {
		return core.MealEntry{}, fmt.Errorf("%w: %q", core.ErrUnknownFood, in.Food)
	}

	entry := core.NewMealEntry(date, slot.Label(), food.Name, in.QuantityGrams, food.CaloriesPer100g)
	if err := entry.Validate(); err != nil {
		return core.MealEntry{}, err
	}
	if err := s.meals.AppendMeal(ctx, u.Key, entry); err != nil {
		return core.MealEntry{}, fmt.Errorf("append meal: %w", err)
	}
	s.events.LogMealLogged(ctx, u.Key, entry)

	if s.publisher != nil {
		if err := s.publisher.PublishMealLogged(ctx, u, entry); err != nil {
			s.events.LogError(ctx, "Failed to publish meal event", err, applog.ComponentAMQP, applog.OpPublish,
				applog.NewFields().WithUser(u.Key))
		}
	}
	return entry, nil
}

// MealHistory returns the user's meals grouped by day, most recent first.
func (s *TrackerService) MealHistory(ctx context.Context, user string) ([]core.DaySummary, error) {
	u, err := s.User(user)
	if err != nil {
		return nil, err
	}
	entries, err := s.meals.LoadMeals(ctx, u.Key)
	if err != nil {
		return nil, fmt.Errorf("load meals: %w", err)
	}
	return core.Summarize(entries), nil
}

func (s *TrackerService) MealDay(ctx context.Context, user, date string) (core.DaySummary, error) {
	u, err := s.User(user)
	if err != nil {
		return core.DaySummary{}, err
	}
	day, err := core.ParseDate(date)
	if err != nil {
		return core.DaySummary{}, err
	}
	entries, err := s.meals.LoadMeals(ctx, u.Key)
	if err != nil {
		return core.DaySummary{}, fmt.Errorf("load meals: %w", err)
	}
	dayEntries := core.GroupByDay(entries)[day]
	if len(dayEntries) == 0 {
		return core.DaySummary{}, fmt.Errorf("%w: %s", core.ErrDayNotFound, day)
	}
	return core.DaySummary{Date: day, Entries: dayEntries, TotalCalories: core.TotalCalories(dayEntries)}, nil
}

func (s *TrackerService) LogWeight(ctx context.Context, in LogWeightInput) (core.WeightSample, error) {
	u, err := s.User(in.User)
	if err != nil {
		return core.WeightSample{}, err
	}
	date, err := s.date(in.Date)
	if err != nil {
		return core.WeightSample{}, err
	}
	sample := core.WeightSample{Date: date, WeightKg: in.WeightKg}
	if err := sample.Validate(); err != nil {
		return core.WeightSample{}, err
	}
	if err := s.weights.AppendWeight(ctx, u.Key, sample); err != nil {
		return core.WeightSample{}, fmt.Errorf("append weight: %w", err)
	}
	s.events.LogWeightLogged(ctx, u.Key, sample)

	if s.publisher != nil {
		if err := s.publisher.PublishWeightLogged(ctx, u, sample); err != nil {
			s.events.LogError(ctx, "Failed to publish weight event", err, applog.ComponentAMQP, applog.OpPublish,
				applog.NewFields().WithUser(u.Key))
		}
	}
	return sample, nil
}

// WeightTrend returns the samples in date order. heightCm of zero skips the
// BMI series.
func (s *TrackerService) WeightTrend(ctx context.Context, user string, heightCm float64) (WeightTrend, error) {
	u, err := s.User(user)
	if err != nil {
		return WeightTrend{}, err
	}
	if heightCm != 0 {
		if err := checkHeight(heightCm); err != nil {
			return WeightTrend{}, err
		}
	}
	samples, err := s.weights.LoadWeights(ctx, u.Key)
	if err != nil {
		return WeightTrend{}, fmt.Errorf("load weights: %w", err)
	}

	sorted := core.SortedByDate(samples)
	trend := WeightTrend{Samples: sorted, Latest: core.Latest(sorted, LatestSamples)}
	if heightCm != 0 {
		if trend.BMI, err = core.BMISeries(sorted, heightCm); err != nil {
			return WeightTrend{}, err
		}
	}
	return trend, nil
}

// Profile derives BMI and hydration targets for a weight and height.
func (s *TrackerService) Profile(weightKg, heightCm float64) (Profile, error) {
	return BuildProfile(weightKg, heightCm)
}

func BuildProfile(weightKg, heightCm float64) (Profile, error) {
	if !(weightKg >= core.MinWeightKg && weightKg <= core.MaxWeightKg) {
		return Profile{}, fmt.Errorf("%w: %v kg (allowed %.0f-%.0f)", core.ErrInvalidWeight, weightKg, core.MinWeightKg, core.MaxWeightKg)
	}
	if err := checkHeight(heightCm); err != nil {
		return Profile{}, err
	}
	bmi, err := core.BMI(weightKg, heightCm)
	if err != nil {
		return Profile{}, err
	}
	liters := core.RecommendedWaterLiters(weightKg)
	return Profile{
		WeightKg:    weightKg,
		HeightCm:    heightCm,
		BMI:         bmi,
		Class:       core.ClassifyBMI(bmi),
		WaterLiters: liters,
		Cups:        core.RecommendedCups(liters),
	}, nil
}

func checkHeight(heightCm float64) error {
	if !(heightCm >= core.MinHeightCm && heightCm <= core.MaxHeightCm) {
		return fmt.Errorf("%w: %v cm (allowed %.0f-%.0f)", core.ErrInvalidHeight, heightCm, core.MinHeightCm, core.MaxHeightCm)
	}
	return nil
}

func (s *TrackerService) date(v string) (string, error) {
	if v == "" {
		return core.FormatDate(s.now()), nil
	}
	return core.ParseDate(v)
}
