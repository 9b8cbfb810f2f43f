package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pasti/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
		want        string
	}{
		{"valid", "application/json", `{"name":"Arroz"}`, false, "Arroz"},
		{"charset", "application/json; charset=utf-8", `{"name":"Maçã"}`, false, "Maçã"},
		{"no content type", "", `{"name":"x"}`, false, "x"},
		{"form", "application/x-www-form-urlencoded", `name=x`, true, ""},
		{"unknown field", "application/json", `{"nome":"x"}`, true, ""},
		{"trailing", "application/json", `{"name":"x"}{"name":"y"}`, true, ""},
		{"empty", "application/json", ``, true, ""},
		{"too large", "application/json", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			var got body
			err := decodeJSON(httptest.NewRecorder(), r, &got)
			if tt.wantErr {
				if !errors.Is(err, errBadRequest) {
					t.Fatalf("err = %v, want errBadRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Name != tt.want {
				t.Fatalf("name = %q", got.Name)
			}
		})
	}
}

func TestQueryFloat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?height_cm=172.5&weight_kg=70,5&bad=abc&blank=&nan=NaN&inf=-Inf", nil)

	if v, ok, err := queryFloat(r, "height_cm"); err != nil || !ok || v != 172.5 {
		t.Fatalf("height_cm = %v %v %v", v, ok, err)
	}
	if v, ok, err := queryFloat(r, "weight_kg"); err != nil || !ok || v != 70.5 {
		t.Fatalf("decimal comma = %v %v %v", v, ok, err)
	}
	if _, ok, err := queryFloat(r, "blank"); err != nil || ok {
		t.Fatalf("blank = %v %v", ok, err)
	}
	if _, _, err := queryFloat(r, "bad"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("bad = %v", err)
	}
	for _, name := range []string{"nan", "inf"} {
		if _, _, err := queryFloat(r, name); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("%s = %v", name, err)
		}
	}
	if _, err := requireFloat(r, "missing"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("missing = %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  Arroz  ":       "Arroz",
		"Fei\x00jão":      "Feijão",
		"a\x7fb":          "ab",
		"line\nbreak":     "line\nbreak",
		"\tPão de queijo": "Pão de queijo",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}
