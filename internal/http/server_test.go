package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pasti/internal/core"
	applog "pasti/internal/log"
	"pasti/internal/memory"
	"pasti/internal/middleware/ratelimit"
	"pasti/internal/services"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := memory.New([]core.FoodItem{
		core.NewFoodItem("Arroz", 130, ""),
		core.NewFoodItem("Maçã", 52, "1 unidade"),
	})
	users := []core.User{core.NewUser("Milena"), core.NewUser("Raul")}
	tracker := services.NewTrackerService(users, store, store, store, nil).
		WithClock(func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) })

	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Output: &bytes.Buffer{}})
	}
	srv := NewServer(":0", tracker, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	down := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db gone") }})
	if rr := do(t, down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/users", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff: %v", rr.Header())
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Fatalf("request id = %q", rr.Header().Get("X-Request-ID"))
	}
	users := decode[struct {
		Users []userDTO `json:"users"`
	}](t, rr)
	if len(users.Users) != 2 || users.Users[0] != (userDTO{Name: "Milena", Key: "milena"}) {
		t.Fatalf("users = %+v", users.Users)
	}
}

func TestFoods(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/foods", `{"name":"  Feijão ","calories_per_100g":76}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
	}
	created := decode[struct {
		Food  foodDTO   `json:"food"`
		Foods []foodDTO `json:"foods"`
	}](t, rr)
	if created.Food != (foodDTO{Name: "Feijão", CaloriesPer100g: 76, Portion: "100g"}) {
		t.Fatalf("food = %+v", created.Food)
	}
	if len(created.Foods) != 3 {
		t.Fatalf("foods = %+v", created.Foods)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate ignores case", `{"name":"arroz","calories_per_100g":1}`, http.StatusConflict},
		{"missing calories", `{"name":"Pão"}`, http.StatusUnprocessableEntity},
		{"negative calories", `{"name":"Pão","calories_per_100g":-1}`, http.StatusUnprocessableEntity},
		{"empty name", `{"name":"  ","calories_per_100g":10}`, http.StatusUnprocessableEntity},
		{"pipe in name", `{"name":"a|b","calories_per_100g":10}`, http.StatusUnprocessableEntity},
		{"malformed", `{"name":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, http.MethodPost, "/api/foods", tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}

	list := decode[struct {
		Foods    []foodDTO    `json:"foods"`
		Warnings []warningDTO `json:"warnings"`
	}](t, do(t, srv, http.MethodGet, "/api/foods", ""))
	if len(list.Foods) != 3 || list.Warnings == nil || len(list.Warnings) != 0 {
		t.Fatalf("list = %+v", list)
	}
}

func TestMeals(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/users/Milena/meals", `{"slot":"lunch","food":"arroz","quantity_grams":150}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("log status=%d body=%s", rr.Code, rr.Body)
	}
	logged := decode[struct {
		Meal mealDTO `json:"meal"`
	}](t, rr)
	want := mealDTO{Date: "2024-03-10", Slot: "Almoço", Food: "Arroz", QuantityGrams: 150, Calories: 195}
	if logged.Meal != want {
		t.Fatalf("meal = %+v", logged.Meal)
	}

	do(t, srv, http.MethodPost, "/api/users/milena/meals", `{"date":"2024-03-09","slot":"Jantar","food":"Maçã","quantity_grams":100}`)
	do(t, srv, http.MethodPost, "/api/users/milena/meals", `{"date":"2024-03-10","slot":"dinner","food":"Maçã","quantity_grams":200}`)

	history := decode[struct {
		User userDTO  `json:"user"`
		Days []dayDTO `json:"days"`
	}](t, do(t, srv, http.MethodGet, "/api/users/milena/meals", ""))
	if history.User.Name != "Milena" || len(history.Days) != 2 {
		t.Fatalf("history = %+v", history)
	}
	if history.Days[0].Date != "2024-03-10" || history.Days[0].TotalCalories != 299 || len(history.Days[0].Meals) != 2 {
		t.Fatalf("latest day = %+v", history.Days[0])
	}

	day := decode[dayDTO](t, do(t, srv, http.MethodGet, "/api/users/milena/meals/2024-03-09", ""))
	if day.TotalCalories != 52 || len(day.Meals) != 1 {
		t.Fatalf("day = %+v", day)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown user", http.MethodPost, "/api/users/bob/meals", `{"slot":"lunch","food":"Arroz","quantity_grams":1}`, http.StatusNotFound},
		{"unknown food", http.MethodPost, "/api/users/raul/meals", `{"slot":"lunch","food":"Sushi","quantity_grams":1}`, http.StatusUnprocessableEntity},
		{"bad slot", http.MethodPost, "/api/users/raul/meals", `{"slot":"brunch","food":"Arroz","quantity_grams":1}`, http.StatusUnprocessableEntity},
		{"zero quantity", http.MethodPost, "/api/users/raul/meals", `{"slot":"lunch","food":"Arroz","quantity_grams":0}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/users/raul/meals", `{"date":"10/03/2024","slot":"lunch","food":"Arroz","quantity_grams":1}`, http.StatusUnprocessableEntity},
		{"empty day", http.MethodGet, "/api/users/raul/meals/2024-03-10", "", http.StatusNotFound},
		{"history unknown user", http.MethodGet, "/api/users/bob/meals", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, tt.method, tt.path, tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}
}

func TestWeights(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, body := range []string{
		`{"date":"2024-03-05","weight_kg":70}`,
		`{"date":"2024-03-01","weight_kg":72.5}`,
		`{"weight_kg":69}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/api/users/raul/weights", body); rr.Code != http.StatusCreated {
			t.Fatalf("log %s status=%d body=%s", body, rr.Code, rr.Body)
		}
	}
	if rr := do(t, srv, http.MethodPost, "/api/users/raul/weights", `{"weight_kg":12}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out of range status=%d", rr.Code)
	}

	plain := decode[map[string]json.RawMessage](t, do(t, srv, http.MethodGet, "/api/users/raul/weights", ""))
	if _, ok := plain["bmi"]; ok {
		t.Fatal("bmi reported without height")
	}

	trend := decode[struct {
		Samples []weightDTO `json:"samples"`
		Latest  []weightDTO `json:"latest"`
		BMI     []bmiDTO    `json:"bmi"`
	}](t, do(t, srv, http.MethodGet, "/api/users/raul/weights?height_cm=200", ""))
	dates := []string{}
	for _, s := range trend.Samples {
		dates = append(dates, s.Date)
	}
	if strings.Join(dates, ",") != "2024-03-01,2024-03-05,2024-03-10" {
		t.Fatalf("samples = %v", dates)
	}
	if len(trend.BMI) != 3 || trend.BMI[1].BMI != 17.5 {
		t.Fatalf("bmi = %+v", trend.BMI)
	}

	if rr := do(t, srv, http.MethodGet, "/api/users/raul/weights?height_cm=abc", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad height status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/users/raul/weights?height_cm=90", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short height status=%d", rr.Code)
	}
}

func TestProfile(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/profile?weight_kg=70&height_cm=175", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	p := decode[profileDTO](t, rr)
	if p.Class != "normal" || p.Label != "Peso normal" || p.Cups != 10 || p.WaterLiters != 2.45 {
		t.Fatalf("profile = %+v", p)
	}

	for _, q := range []string{
		"weight_kg=70",
		"weight_kg=20&height_cm=175",
		"weight_kg=70&height_cm=300",
		"weight_kg=NaN&height_cm=170",
		"weight_kg=70&height_cm=NaN",
		"weight_kg=Inf&height_cm=170",
	} {
		if rr := do(t, srv, http.MethodGet, "/api/profile?"+q, ""); rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s status=%d", q, rr.Code)
		}
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimit: ratelimit.Config{Requests: 2, Window: time.Minute}})

	for i := 0; i < 2; i++ {
		do(t, srv, http.MethodPost, "/api/users/raul/weights", `{"weight_kg":70}`)
	}
	rr := do(t, srv, http.MethodPost, "/api/users/raul/weights", `{"weight_kg":70}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/users/raul/weights", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads limited too: status=%d", rr.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrDuplicateFood, http.StatusConflict},
		{core.ErrUnknownUser, http.StatusNotFound},
		{core.ErrDayNotFound, http.StatusNotFound},
		{core.ErrInvalidSlot, http.StatusUnprocessableEntity},
		{errBadRequest, http.StatusBadRequest},
		{&core.StorageError{Op: "write", Err: errors.New("disk full")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestListSlots(t *testing.T) {
	srv := newTestServer(t, Options{})
	got := decode[struct {
		Slots []slotDTO `json:"slots"`
	}](t, do(t, srv, http.MethodGet, "/api/slots", ""))
	if len(got.Slots) != 5 || got.Slots[0] != (slotDTO{Key: "breakfast", Label: "Café da Manhã"}) || got.Slots[4].Label != "Jantar" {
		t.Fatalf("slots = %+v", got.Slots)
	}
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusOK, map[string]float64{"bmi": math.NaN()})
	if rr.Code != http.StatusInternalServerError || rr.Body.Len() == 0 {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body)
	}
}
