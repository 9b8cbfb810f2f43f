// Package flatfile stores the catalog as a JSON document and each ledger as
// a pipe-separated text file, byte-compatible with the existing
// alimentos.json and historico_/peso_ files.
//
// This file holds the encoders and decoders for both formats.
package flatfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pasti/internal/core"
)

const (
	fieldName          = "nome"
	fieldCalories      = "calorias_p100g"
	fieldLegacyCalorie = "calorias"
	fieldPortion       = "porcao"

	fieldSep = "|"
)

// formatFloat renders f as the existing files do: shortest
// round-trip digits, always with a fractional part in fixed notation, and
// scientific notation outside 1e-4 <= |f| < 1e16.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// writeJSONString writes s as a JSON string leaving non-ASCII text literal.
func writeJSONString(b *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hex[r>>4])
				b.WriteByte(hex[r&0xf])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

// encodeCatalog renders items as a 2-space indented JSON array, the empty
// catalog being "[]". There is no trailing newline.
func encodeCatalog(items []core.FoodItem) []byte {
	var b bytes.Buffer
	if len(items) == 0 {
		b.WriteString("[]")
		return b.Bytes()
	}
	b.WriteString("[\n")
	for i, it := range items {
		b.WriteString("  {\n    \"" + fieldName + "\": ")
		writeJSONString(&b, it.Name)
		b.WriteString(",\n    \"" + fieldCalories + "\": ")
		b.WriteString(formatJSONNumber(it.CaloriesPer100g))
		b.WriteString(",\n    \"" + fieldPortion + "\": ")
		writeJSONString(&b, it.Portion)
		b.WriteString("\n  }")
		if i < len(items)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteByte(']')
	return b.Bytes()
}

func formatJSONNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return formatFloat(f)
}

// decodeCatalog parses a catalog document. A document that is not a JSON
// array yields a single problem and no items; individual records that lack a
// name or a calorie value are reported and skipped.
func decodeCatalog(source string, data []byte) ([]core.FoodItem, []*core.ParseError) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []*core.ParseError{{Source: source, Record: -1, Reason: err.Error()}}
	}

	items := make([]core.FoodItem, 0, len(raw))
	var problems []*core.ParseError
	for i, rec := range raw {
		item, reason := decodeFood(rec)
		if reason != "" {
			problems = append(problems, &core.ParseError{Source: source, Record: i, Reason: reason})
			continue
		}
		items = append(items, item)
	}
	return items, problems
}

func decodeFood(rec json.RawMessage) (core.FoodItem, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec, &fields); err != nil || fields == nil {
		return core.FoodItem{}, fmt.Sprintf("not an object: %s", compact(rec))
	}

	var name string
	nameRaw, ok := fields[fieldName]
	if !ok || json.Unmarshal(nameRaw, &name) != nil || strings.TrimSpace(name) == "" {
		return core.FoodItem{}, fmt.Sprintf("missing name: %s", compact(rec))
	}

	calories, found, err := resolveCalories(fields)
	if err != nil {
		return core.FoodItem{}, fmt.Sprintf("invalid calories for %q: %v", name, err)
	}
	if !found {
		return core.FoodItem{}, fmt.Sprintf("missing calories for %q", name)
	}

	var portion string
	if p, ok := fields[fieldPortion]; ok {
		_ = json.Unmarshal(p, &portion)
	}
	// Names are kept verbatim so that save(load()) does not rewrite them.
	item := core.NewFoodItem(name, calories, portion)
	item.Name = name
	return item, ""
}

// resolveCalories reads the current field first and falls back to the
// legacy one. found is false when neither holds a value.
func resolveCalories(fields map[string]json.RawMessage) (value float64, found bool, err error) {
	for _, key := range []string{fieldCalories, fieldLegacyCalorie} {
		raw, ok := fields[key]
		if !ok || string(bytes.TrimSpace(raw)) == "null" {
			continue
		}
		v, err := parseNumber(raw)
		if err != nil {
			return 0, false, err
		}
		return v, true, nil
	}
	return 0, false, nil
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", compact(raw))
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

func compact(raw json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}

func formatMealLine(e core.MealEntry) string {
	return strings.Join([]string{
		e.Date,
		e.Slot,
		e.FoodName,
		formatFloat(e.QuantityGrams),
		formatFloat(e.Calories),
	}, fieldSep) + "\n"
}

func parseMealLine(source string, lineNo int, line string) (core.MealEntry, error) {
	parts := strings.Split(strings.TrimSpace(line), fieldSep)
	if len(parts) != 5 {
		return core.MealEntry{}, &core.ParseError{Source: source, Record: lineNo, Reason: fmt.Sprintf("expected 5 fields, got %d", len(parts))}
	}
	qty, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return core.MealEntry{}, &core.ParseError{Source: source, Record: lineNo, Reason: fmt.Sprintf("invalid quantity %q", parts[3])}
	}
	kcal, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return core.MealEntry{}, &core.ParseError{Source: source, Record: lineNo, Reason: fmt.Sprintf("invalid calories %q", parts[4])}
	}
	return core.MealEntry{
		Date:          parts[0],
		Slot:          parts[1],
		FoodName:      parts[2],
		QuantityGrams: qty,
		Calories:      kcal,
	}, nil
}

func formatWeightLine(s core.WeightSample) string {
	return s.Date + fieldSep + formatFloat(s.WeightKg) + "\n"
}

func parseWeightLine(source string, lineNo int, line string) (core.WeightSample, error) {
	parts := strings.Split(strings.TrimSpace(line), fieldSep)
	if len(parts) != 2 {
		return core.WeightSample{}, &core.ParseError{Source: source, Record: lineNo, Reason: fmt.Sprintf("expected 2 fields, got %d", len(parts))}
	}
	kg, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return core.WeightSample{}, &core.ParseError{Source: source, Record: lineNo, Reason: fmt.Sprintf("invalid weight %q", parts[1])}
	}
	return core.WeightSample{Date: parts[0], WeightKg: kg}, nil
}
