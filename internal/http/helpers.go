package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"pasti/internal/core"
	applog "pasti/internal/log"
	"pasti/internal/middleware/trace"
	"pasti/internal/services"
)

type (
	userDTO struct {
		Name string `json:"name"`
		Key  string `json:"key"`
	}

	slotDTO struct {
		Key   string `json:"key"`
		Label string `json:"label"`
	}

	foodDTO struct {
		Name            string  `json:"name"`
		CaloriesPer100g float64 `json:"calories_per_100g"`
		Portion         string  `json:"portion"`
	}

	warningDTO struct {
		Source string `json:"source"`
		Record int    `json:"record"`
		Reason string `json:"reason"`
	}

	mealDTO struct {
		Date          string  `json:"date"`
		Slot          string  `json:"slot"`
		Food          string  `json:"food"`
		QuantityGrams float64 `json:"quantity_grams"`
		Calories      float64 `json:"calories"`
	}

	dayDTO struct {
		Date          string    `json:"date"`
		TotalCalories float64   `json:"total_calories"`
		Meals         []mealDTO `json:"meals"`
	}

	weightDTO struct {
		Date     string  `json:"date"`
		WeightKg float64 `json:"weight_kg"`
	}

	bmiDTO struct {
		Date     string  `json:"date"`
		WeightKg float64 `json:"weight_kg"`
		BMI      float64 `json:"bmi"`
	}

	profileDTO struct {
		WeightKg    float64 `json:"weight_kg"`
		HeightCm    float64 `json:"height_cm"`
		BMI         float64 `json:"bmi"`
		Class       string  `json:"class"`
		Label       string  `json:"label"`
		WaterLiters float64 `json:"water_liters"`
		Cups        int     `json:"cups"`
	}

	errorDTO struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id,omitempty"`
	}
)

func toUsers(users []core.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userDTO{Name: u.Name, Key: u.Key})
	}
	return out
}

func toFood(f core.FoodItem) foodDTO {
	return foodDTO{Name: f.Name, CaloriesPer100g: f.CaloriesPer100g, Portion: f.Portion}
}

func toFoods(items []core.FoodItem) []foodDTO {
	out := make([]foodDTO, 0, len(items))
	for _, f := range items {
		out = append(out, toFood(f))
	}
	return out
}

func toWarnings(problems []*core.ParseError) []warningDTO {
	out := make([]warningDTO, 0, len(problems))
	for _, p := range problems {
		out = append(out, warningDTO{Source: p.Source, Record: p.Record, Reason: p.Reason})
	}
	return out
}

func toMeal(e core.MealEntry) mealDTO {
	return mealDTO{Date: e.Date, Slot: e.Slot, Food: e.FoodName, QuantityGrams: e.QuantityGrams, Calories: e.Calories}
}

func toDay(d core.DaySummary) dayDTO {
	meals := make([]mealDTO, 0, len(d.Entries))
	for _, e := range d.Entries {
		meals = append(meals, toMeal(e))
	}
	return dayDTO{Date: d.Date, TotalCalories: d.TotalCalories, Meals: meals}
}

func toWeights(samples []core.WeightSample) []weightDTO {
	out := make([]weightDTO, 0, len(samples))
	for _, s := range samples {
		out = append(out, weightDTO{Date: s.Date, WeightKg: s.WeightKg})
	}
	return out
}

func toBMI(points []core.BMIPoint) []bmiDTO {
	out := make([]bmiDTO, 0, len(points))
	for _, p := range points {
		out = append(out, bmiDTO{Date: p.Date, WeightKg: p.WeightKg, BMI: p.BMI})
	}
	return out
}

func toProfile(p services.Profile) profileDTO {
	return profileDTO{
		WeightKg:    p.WeightKg,
		HeightCm:    p.HeightCm,
		BMI:         p.BMI,
		Class:       p.Class.String(),
		Label:       p.Class.Label(),
		WaterLiters: p.WaterLiters,
		Cups:        p.Cups,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrDuplicateFood):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnknownUser), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Server errors are logged and
// their details withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.events.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithRequestID(trace.FromRequest(r)))
		msg = "internal error"
	}
	writeJSON(w, status, errorDTO{Error: msg, RequestID: trace.FromRequest(r)})
}
