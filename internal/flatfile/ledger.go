package flatfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pasti/internal/core"
	"pasti/internal/ports"
)

var (
	_ ports.MealLedger   = (*Ledgers)(nil)
	_ ports.WeightLedger = (*Ledgers)(nil)
)

// Ledgers keeps one append-only meal file and one weight file per user
// inside a directory. Appends from this process are serialised; other
// processes writing the same files are not coordinated with.
type Ledgers struct {
	mu  sync.Mutex
	dir string
}

func NewLedgers(dir string) *Ledgers {
	return &Ledgers{dir: dir}
}

// MealPath returns the meal ledger location for a user key.
func (l *Ledgers) MealPath(userKey string) string {
	return filepath.Join(l.dir, "historico_"+userKey+".txt")
}

// WeightPath returns the weight ledger location for a user key.
func (l *Ledgers) WeightPath(userKey string) string {
	return filepath.Join(l.dir, "peso_"+userKey+".txt")
}

func (l *Ledgers) AppendMeal(ctx context.Context, userKey string, e core.MealEntry) error {
	if err := checkKey(userKey); err != nil {
		return err
	}
	for _, f := range []string{e.Date, e.Slot, e.FoodName} {
		if strings.ContainsAny(f, "|\r\n") {
			return fmt.Errorf("%w: meal field %q would break the ledger line", core.ErrValidation, f)
		}
	}
	path := l.MealPath(userKey)
	if err := l.appendLine(ctx, path, formatMealLine(e)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Meal appended to ledger",
		"user", userKey,
		"date", e.Date,
		"slot", e.Slot,
		"food", e.FoodName,
		"calories", e.Calories)
	return nil
}

func (l *Ledgers) LoadMeals(ctx context.Context, userKey string) ([]core.MealEntry, error) {
	if err := checkKey(userKey); err != nil {
		return nil, err
	}
	path := l.MealPath(userKey)
	var out []core.MealEntry
	err := readLines(ctx, path, func(lineNo int, line string) error {
		e, err := parseMealLine(filepath.Base(path), lineNo, line)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func (l *Ledgers) AppendWeight(ctx context.Context, userKey string, s core.WeightSample) error {
	if err := checkKey(userKey); err != nil {
		return err
	}
	if strings.ContainsAny(s.Date, "|\r\n") {
		return fmt.Errorf("%w: weight date %q would break the ledger line", core.ErrValidation, s.Date)
	}
	path := l.WeightPath(userKey)
	if err := l.appendLine(ctx, path, formatWeightLine(s)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Weight appended to ledger",
		"user", userKey,
		"date", s.Date,
		"weight_kg", s.WeightKg)
	return nil
}

func (l *Ledgers) LoadWeights(ctx context.Context, userKey string) ([]core.WeightSample, error) {
	if err := checkKey(userKey); err != nil {
		return nil, err
	}
	path := l.WeightPath(userKey)
	var out []core.WeightSample
	err := readLines(ctx, path, func(lineNo int, line string) error {
		s, err := parseWeightLine(filepath.Base(path), lineNo, line)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func (l *Ledgers) appendLine(ctx context.Context, path, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return &core.StorageError{Op: "mkdir", Path: l.dir, Err: err}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &core.StorageError{Op: "open", Path: path, Err: err}
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return &core.StorageError{Op: "append", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &core.StorageError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// readLines feeds every non-blank line to fn with its one-based number. A
// missing file is an empty ledger.
func readLines(ctx context.Context, path string, fn func(lineNo int, line string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &core.StorageError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return &core.StorageError{Op: "read", Path: path, Err: err}
	}
	return nil
}

// checkKey keeps user keys from escaping the data directory.
func checkKey(userKey string) error {
	if userKey == "" || strings.ContainsAny(userKey, `/\`) || strings.Contains(userKey, "..") {
		return fmt.Errorf("%w: invalid user key %q", core.ErrUnknownUser, userKey)
	}
	return nil
}
