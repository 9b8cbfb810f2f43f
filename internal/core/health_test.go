package core

import (
	"errors"
	"math"
	"testing"
)

func TestClassifyBMIBoundaries(t *testing.T) {
	cases := []struct {
		bmi  float64
		want BMIClass
	}{
		{18.4, Underweight},
		{18.5, Normal},
		{24.9, Normal},
		{25.0, Overweight},
		{29.99, Overweight},
		{30.0, Obese},
		{45, Obese},
	}
	for _, tc := range cases {
		if got := ClassifyBMI(tc.bmi); got != tc.want {
			t.Fatalf("ClassifyBMI(%v) = %s, want %s", tc.bmi, got, tc.want)
		}
	}
}

func TestBMI(t *testing.T) {
	bmi, err := BMI(70, 170)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(bmi-24.22) > 0.01 {
		t.Fatalf("expected ~24.22, got %v", bmi)
	}
	for _, h := range []float64{0, -170} {
		if _, err := BMI(70, h); !errors.Is(err, ErrInvalidHeight) {
			t.Fatalf("height %v: expected ErrInvalidHeight, got %v", h, err)
		}
	}
}

func TestWaterRecommendation(t *testing.T) {
	liters := RecommendedWaterLiters(65)
	if liters != 2.275 {
		t.Fatalf("expected 2.275 L, got %v", liters)
	}
	if cups := RecommendedCups(liters); cups != 9 {
		t.Fatalf("expected 9 cups, got %d", cups)
	}
}

func TestRecommendedCupsHalfToEven(t *testing.T) {
	cases := []struct {
		liters float64
		cups   int
	}{
		{2.125, 8},  // 8.5
		{2.375, 10}, // 9.5
		{0.125, 0},  // 0.5
		{0.375, 2},  // 1.5
		{2.0, 8},
	}
	for _, tc := range cases {
		if got := RecommendedCups(tc.liters); got != tc.cups {
			t.Fatalf("RecommendedCups(%v) = %d, want %d", tc.liters, got, tc.cups)
		}
	}
}

func TestBMISeriesKeepsOrder(t *testing.T) {
	samples := []WeightSample{{Date: "2024-01-01", WeightKg: 70}, {Date: "2024-01-15", WeightKg: 68}}
	series, err := BMISeries(samples, 170)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{24.22, 23.53}
	if len(series) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(series))
	}
	for i, p := range series {
		if p.Date != samples[i].Date || math.Abs(p.BMI-want[i]) > 0.01 {
			t.Fatalf("point %d = %+v, want date %s bmi ~%v", i, p, samples[i].Date, want[i])
		}
	}
	if _, err := BMISeries(samples, 0); !errors.Is(err, ErrInvalidHeight) {
		t.Fatalf("expected ErrInvalidHeight, got %v", err)
	}
}
