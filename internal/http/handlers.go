package http

import (
	"context"
	"net/http"

	"pasti/internal/core"
	applog "pasti/internal/log"
	"pasti/internal/services"
)

// Tracker is the set of operations the API serves.
type Tracker interface {
	Users() []core.User
	User(name string) (core.User, error)
	Foods(ctx context.Context) (services.FoodList, error)
	RegisterFood(ctx context.Context, in services.RegisterFoodInput) ([]core.FoodItem, error)
	LogMeal(ctx context.Context, in services.LogMealInput) (core.MealEntry, error)
	MealHistory(ctx context.Context, user string) ([]core.DaySummary, error)
	MealDay(ctx context.Context, user, date string) (core.DaySummary, error)
	LogWeight(ctx context.Context, in services.LogWeightInput) (core.WeightSample, error)
	WeightTrend(ctx context.Context, user string, heightCm float64) (services.WeightTrend, error)
	Profile(weightKg, heightCm float64) (services.Profile, error)
}

var _ Tracker = (*services.TrackerService)(nil)

type (
	registerFoodRequest struct {
		Name            string   `json:"name"`
		CaloriesPer100g *float64 `json:"calories_per_100g"`
		Portion         string   `json:"portion"`
	}

	logMealRequest struct {
		Date          string  `json:"date"`
		Slot          string  `json:"slot"`
		Food          string  `json:"food"`
		QuantityGrams float64 `json:"quantity_grams"`
	}

	logWeightRequest struct {
		Date     string  `json:"date"`
		WeightKg float64 `json:"weight_kg"`
	}
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.events.LogError(r.Context(), "Readiness check failed", err, applog.ComponentBackend, applog.OpRead, nil)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": toUsers(s.tracker.Users())})
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	slots := make([]slotDTO, 0, len(core.MealSlots()))
	for _, slot := range core.MealSlots() {
		slots = append(slots, slotDTO{Key: string(slot), Label: slot.Label()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *Server) handleListFoods(w http.ResponseWriter, r *http.Request) {
	list, err := s.tracker.Foods(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"foods":    toFoods(list.Items),
		"warnings": toWarnings(list.Problems),
	})
}

func (s *Server) handleRegisterFood(w http.ResponseWriter, r *http.Request) {
	var req registerFoodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	if req.CaloriesPer100g == nil {
		s.writeError(w, r, applog.OpCreate, core.ErrInvalidCalories)
		return
	}

	in := services.RegisterFoodInput{
		Name:            sanitizeInput(req.Name),
		CaloriesPer100g: *req.CaloriesPer100g,
		Portion:         sanitizeInput(req.Portion),
	}
	items, err := s.tracker.RegisterFood(r.Context(), in)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	food, _ := core.FindFood(items, in.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"food":  toFood(food),
		"foods": toFoods(items),
	})
}

func (s *Server) handleMealHistory(w http.ResponseWriter, r *http.Request) {
	u, err := s.tracker.User(r.PathValue("user"))
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	days, err := s.tracker.MealHistory(r.Context(), u.Key)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]dayDTO, 0, len(days))
	for _, d := range days {
		out = append(out, toDay(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": userDTO{Name: u.Name, Key: u.Key},
		"days": out,
	})
}

func (s *Server) handleMealDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.tracker.MealDay(r.Context(), r.PathValue("user"), r.PathValue("date"))
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toDay(day))
}

func (s *Server) handleLogMeal(w http.ResponseWriter, r *http.Request) {
	var req logMealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpAppend, err)
		return
	}
	entry, err := s.tracker.LogMeal(r.Context(), services.LogMealInput{
		User:          r.PathValue("user"),
		Date:          sanitizeInput(req.Date),
		Slot:          sanitizeInput(req.Slot),
		Food:          sanitizeInput(req.Food),
		QuantityGrams: req.QuantityGrams,
	})
	if err != nil {
		s.writeError(w, r, applog.OpAppend, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"meal": toMeal(entry)})
}

func (s *Server) handleWeightTrend(w http.ResponseWriter, r *http.Request) {
	heightCm, _, err := queryFloat(r, "height_cm")
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	trend, err := s.tracker.WeightTrend(r.Context(), r.PathValue("user"), heightCm)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	body := map[string]any{
		"samples": toWeights(trend.Samples),
		"latest":  toWeights(trend.Latest),
	}
	if heightCm != 0 {
		body["bmi"] = toBMI(trend.BMI)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleLogWeight(w http.ResponseWriter, r *http.Request) {
	var req logWeightRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpAppend, err)
		return
	}
	sample, err := s.tracker.LogWeight(r.Context(), services.LogWeightInput{
		User:     r.PathValue("user"),
		Date:     sanitizeInput(req.Date),
		WeightKg: req.WeightKg,
	})
	if err != nil {
		s.writeError(w, r, applog.OpAppend, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"weight": weightDTO{Date: sample.Date, WeightKg: sample.WeightKg}})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	weightKg, err := requireFloat(r, "weight_kg")
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	heightCm, err := requireFloat(r, "height_cm")
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	p, err := s.tracker.Profile(weightKg, heightCm)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(p))
}
