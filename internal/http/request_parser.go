// Package http exposes the tracker as a JSON API.
//
// This file holds the request decoding helpers shared by the handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"pasti/internal/core"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed requests, as opposed to well formed ones
// carrying invalid values.
var errBadRequest = errors.New("bad request")

// decodeJSON reads a single JSON object into dst, refusing unknown fields
// and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return fmt.Errorf("%w: content type %q is not application/json", errBadRequest, ct)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body larger than %d bytes", errBadRequest, maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after the JSON object", errBadRequest)
	}
	return nil
}

// queryFloat reads an optional numeric query parameter. ok is false when the
// parameter is absent or blank.
func queryFloat(r *http.Request, name string) (v float64, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%w: %s must be a number, got %q", core.ErrValidation, name, raw)
	}
	return v, true, nil
}

// requireFloat is queryFloat for mandatory parameters.
func requireFloat(r *http.Request, name string) (float64, error) {
	v, ok, err := queryFloat(r, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", core.ErrValidation, name)
	}
	return v, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace. Line breaks are left for validation to reject.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
