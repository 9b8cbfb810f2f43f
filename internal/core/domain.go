package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date layout used by every ledger.
const DateLayout = "2006-01-02"

// DefaultPortion is the reference portion used when none is given.
const DefaultPortion = "100g"

// Accepted input ranges for body metrics.
const (
	MinWeightKg = 30.0
	MaxWeightKg = 200.0
	MinHeightCm = 120.0
	MaxHeightCm = 250.0
)

const (
	Breakfast      MealSlot = "breakfast"
	Snack          MealSlot = "snack"
	Lunch          MealSlot = "lunch"
	AfternoonSnack MealSlot = "afternoon_snack"
	Dinner         MealSlot = "dinner"
)

type (
	MealSlot string

	// User is a tracked person. Key is the normalized form used for ledger names.
	User struct {
		Name string
		Key  string
	}

	FoodItem struct {
		Name            string
		CaloriesPer100g float64
		Portion         string // reference portion label
	}

	// MealEntry is one line of a meal ledger. Slot holds the stored label
	// verbatim so legacy free-text values survive a load.
	MealEntry struct {
		Date          string
		Slot          string
		FoodName      string
		QuantityGrams float64
		Calories      float64
	}

	WeightSample struct {
		Date     string
		WeightKg float64
	}
)

var (
	ErrValidation = errors.New("validation failed")

	ErrEmptyName       = fmt.Errorf("%w: empty food name", ErrValidation)
	ErrInvalidName     = fmt.Errorf("%w: food name must not contain '|' or line breaks", ErrValidation)
	ErrDuplicateFood   = fmt.Errorf("%w: food already registered", ErrValidation)
	ErrInvalidCalories = fmt.Errorf("%w: calories per 100g must be a non-negative number", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrInvalidSlot     = fmt.Errorf("%w: unknown meal slot", ErrValidation)
	ErrUnknownFood     = fmt.Errorf("%w: food not in catalog", ErrValidation)
	ErrUnknownUser     = fmt.Errorf("%w: unknown user", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	ErrInvalidWeight   = fmt.Errorf("%w: weight out of range", ErrValidation)
	ErrInvalidHeight   = fmt.Errorf("%w: height must be positive", ErrValidation)

	ErrNotFound    = errors.New("not found")
	ErrDayNotFound = fmt.Errorf("%w: no meals logged on that day", ErrNotFound)
)

var slotLabels = map[MealSlot]string{
	Breakfast:      "Café da Manhã",
	Snack:          "Lanche",
	Lunch:          "Almoço",
	AfternoonSnack: "Lanche da Tarde",
	Dinner:         "Jantar",
}

// MealSlots returns the slots in the order of a day.
func MealSlots() []MealSlot {
	return []MealSlot{Breakfast, Snack, Lunch, AfternoonSnack, Dinner}
}

// Label returns the text written to the meal ledger for the slot.
func (s MealSlot) Label() string {
	return slotLabels[s]
}

func (s MealSlot) Valid() bool {
	_, ok := slotLabels[s]
	return ok
}

// ParseMealSlot accepts either a slot key ("afternoon_snack") or its stored
// label ("Lanche da Tarde"), case-insensitively.
func ParseMealSlot(v string) (MealSlot, error) {
	v = strings.TrimSpace(v)
	for _, s := range MealSlots() {
		if strings.EqualFold(v, string(s)) || strings.EqualFold(v, s.Label()) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSlot, v)
}

// NewUser builds a user with its ledger key.
func NewUser(name string) User {
	name = strings.TrimSpace(name)
	return User{Name: name, Key: UserKey(name)}
}

// UserKey normalizes a user name for ledger lookup.
func UserKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewFoodItem trims the input and applies the default portion.
func NewFoodItem(name string, caloriesPer100g float64, portion string) FoodItem {
	portion = strings.TrimSpace(portion)
	if portion == "" {
		portion = DefaultPortion
	}
	return FoodItem{
		Name:            strings.TrimSpace(name),
		CaloriesPer100g: caloriesPer100g,
		Portion:         portion,
	}
}

func (f FoodItem) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if !lineSafe(f.Name) || !lineSafe(f.Portion) {
		return ErrInvalidName
	}
	if f.CaloriesPer100g < 0 || math.IsNaN(f.CaloriesPer100g) || math.IsInf(f.CaloriesPer100g, 0) {
		return ErrInvalidCalories
	}
	return nil
}

// SameName reports whether two food names collide in the catalog.
func (f FoodItem) SameName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(f.Name), strings.TrimSpace(name))
}

// CaloriesFor returns the energy of a portion of the given weight.
func (f FoodItem) CaloriesFor(quantityGrams float64) float64 {
	return MealCalories(f.CaloriesPer100g, quantityGrams)
}

// MealCalories is caloriesPer100g * quantityGrams / 100.
func MealCalories(caloriesPer100g, quantityGrams float64) float64 {
	return caloriesPer100g * quantityGrams / 100
}

// FindFood looks a name up case-insensitively.
func FindFood(items []FoodItem, name string) (FoodItem, bool) {
	for _, it := range items {
		if it.SameName(name) {
			return it, true
		}
	}
	return FoodItem{}, false
}

// RegisterFood appends candidate to items unless its name is already taken.
// The input slice is never modified.
func RegisterFood(items []FoodItem, candidate FoodItem) ([]FoodItem, error) {
	if err := candidate.Validate(); err != nil {
		return items, err
	}
	if _, exists := FindFood(items, candidate.Name); exists {
		return items, fmt.Errorf("%w: %q", ErrDuplicateFood, candidate.Name)
	}
	out := make([]FoodItem, 0, len(items)+1)
	out = append(out, items...)
	return append(out, candidate), nil
}

// NewMealEntry computes the calories of the meal at write time.
func NewMealEntry(date string, slot string, foodName string, quantityGrams, caloriesPer100g float64) MealEntry {
	return MealEntry{
		Date:          date,
		Slot:          slot,
		FoodName:      foodName,
		QuantityGrams: quantityGrams,
		Calories:      MealCalories(caloriesPer100g, quantityGrams),
	}
}

func (m MealEntry) Validate() error {
	if _, err := ParseDate(m.Date); err != nil {
		return err
	}
	if !lineSafe(m.Slot) || strings.TrimSpace(m.Slot) == "" {
		return ErrInvalidSlot
	}
	if strings.TrimSpace(m.FoodName) == "" {
		return ErrEmptyName
	}
	if !lineSafe(m.FoodName) {
		return ErrInvalidName
	}
	if !(m.QuantityGrams > 0) {
		return ErrInvalidQuantity
	}
	return nil
}

func (w WeightSample) Validate() error {
	if _, err := ParseDate(w.Date); err != nil {
		return err
	}
	if !(w.WeightKg >= MinWeightKg && w.WeightKg <= MaxWeightKg) {
		return fmt.Errorf("%w: %.1f kg (allowed %.0f-%.0f)", ErrInvalidWeight, w.WeightKg, MinWeightKg, MaxWeightKg)
	}
	return nil
}

// ParseDate validates an ISO date and returns it in canonical form.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t.Format(DateLayout), nil
}

// FormatDate renders t as a ledger date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func lineSafe(s string) bool {
	return !strings.ContainsAny(s, "|\r\n")
}
