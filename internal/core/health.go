// Package core provides body-metric arithmetic.
//
// This file contains the BMI formula and its classification, and the daily
// water recommendation derived from body weight.
package core

import (
	"fmt"
	"math"
)

const (
	Underweight BMIClass = iota
	Normal
	Overweight
	Obese
)

const (
	waterMlPerKg = 35.0
	cupLiters    = 0.25
)

type BMIClass int

// BMIPoint is one sample of a BMI series.
type BMIPoint struct {
	Date     string
	WeightKg float64
	BMI      float64
}

func (c BMIClass) String() string {
	switch c {
	case Underweight:
		return "underweight"
	case Normal:
		return "normal"
	case Overweight:
		return "overweight"
	default:
		return "obese"
	}
}

// Label is the classification shown to users.
func (c BMIClass) Label() string {
	switch c {
	case Underweight:
		return "Abaixo do peso"
	case Normal:
		return "Peso normal"
	case Overweight:
		return "Sobrepeso"
	default:
		return "Obesidade"
	}
}

// BMI returns weightKg / (heightCm/100)^2. Heights that are not positive
// are rejected instead of producing Inf or a negative index.
func BMI(weightKg, heightCm float64) (float64, error) {
	if !(heightCm > 0) {
		return 0, fmt.Errorf("%w: %v cm", ErrInvalidHeight, heightCm)
	}
	m := heightCm / 100
	return weightKg / (m * m), nil
}

// ClassifyBMI places bmi in its band. Each band includes its lower bound.
func ClassifyBMI(bmi float64) BMIClass {
	switch {
	case bmi < 18.5:
		return Underweight
	case bmi < 25:
		return Normal
	case bmi < 30:
		return Overweight
	default:
		return Obese
	}
}

// RecommendedWaterLiters is 35 ml per kilogram of body weight.
func RecommendedWaterLiters(weightKg float64) float64 {
	return weightKg * waterMlPerKg / 1000
}

// RecommendedCups converts litres to 250 ml cups. Halves round to the
// nearest even count, so 2.125 L is 8 cups and 2.375 L is 10.
func RecommendedCups(liters float64) int {
	return int(math.RoundToEven(liters / cupLiters))
}

// BMISeries maps each sample through BMI keeping the input order.
func BMISeries(samples []WeightSample, heightCm float64) ([]BMIPoint, error) {
	if !(heightCm > 0) {
		return nil, fmt.Errorf("%w: %v cm", ErrInvalidHeight, heightCm)
	}
	out := make([]BMIPoint, 0, len(samples))
	for _, s := range samples {
		bmi, err := BMI(s.WeightKg, heightCm)
		if err != nil {
			return nil, err
		}
		out = append(out, BMIPoint{Date: s.Date, WeightKg: s.WeightKg, BMI: bmi})
	}
	return out, nil
}
