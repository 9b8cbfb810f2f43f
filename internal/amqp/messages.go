package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"pasti/internal/core"
)

// Kinds of recorded entries.
const (
	KindMeal   = "meal"
	KindWeight = "weight"
)

// EntryRecordedMessage announces one ledger append. It carries the full
// record so consumers never read the ledgers back.
type EntryRecordedMessage struct {
	Kind      string         `json:"kind"`
	User      string         `json:"user"`
	UserKey   string         `json:"user_key"`
	Meal      *MealPayload   `json:"meal,omitempty"`
	Weight    *WeightPayload `json:"weight,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type MealPayload struct {
	Date          string  `json:"date"`
	Slot          string  `json:"slot"`
	Food          string  `json:"food"`
	QuantityGrams float64 `json:"quantity_grams"`
	Calories      float64 `json:"calories"`
}

type WeightPayload struct {
	Date     string  `json:"date"`
	WeightKg float64 `json:"weight_kg"`
}

func NewMealRecordedMessage(u core.User, e core.MealEntry) *EntryRecordedMessage {
	return &EntryRecordedMessage{
		Kind:    KindMeal,
		User:    u.Name,
		UserKey: u.Key,
		Meal: &MealPayload{
			Date:          e.Date,
			Slot:          e.Slot,
			Food:          e.FoodName,
			QuantityGrams: e.QuantityGrams,
			Calories:      e.Calories,
		},
		Timestamp: time.Now(),
	}
}

func NewWeightRecordedMessage(u core.User, s core.WeightSample) *EntryRecordedMessage {
	return &EntryRecordedMessage{
		Kind:      KindWeight,
		User:      u.Name,
		UserKey:   u.Key,
		Weight:    &WeightPayload{Date: s.Date, WeightKg: s.WeightKg},
		Timestamp: time.Now(),
	}
}

func (m *EntryRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryRecordedMessageFromJSON decodes a message and checks that its payload
// matches its kind.
func EntryRecordedMessageFromJSON(data []byte) (*EntryRecordedMessage, error) {
	var msg EntryRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserKey == "" {
		return nil, fmt.Errorf("message without user key")
	}
	switch msg.Kind {
	case KindMeal:
		if msg.Meal == nil {
			return nil, fmt.Errorf("meal message without meal payload")
		}
	case KindWeight:
		if msg.Weight == nil {
			return nil, fmt.Errorf("weight message without weight payload")
		}
	default:
		return nil, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	return &msg, nil
}

func (m *EntryRecordedMessage) RecordedUser() core.User {
	return core.User{Name: m.User, Key: m.UserKey}
}

func (m *EntryRecordedMessage) MealEntry() core.MealEntry {
	if m.Meal == nil {
		return core.MealEntry{}
	}
	return core.MealEntry{
		Date:          m.Meal.Date,
		Slot:          m.Meal.Slot,
		FoodName:      m.Meal.Food,
		QuantityGrams: m.Meal.QuantityGrams,
		Calories:      m.Meal.Calories,
	}
}

func (m *EntryRecordedMessage) WeightSample() core.WeightSample {
	if m.Weight == nil {
		return core.WeightSample{}
	}
	return core.WeightSample{Date: m.Weight.Date, WeightKg: m.Weight.WeightKg}
}
