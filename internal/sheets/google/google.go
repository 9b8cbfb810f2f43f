// Package google exports the tracker's ledgers to a Google spreadsheet, one
// meal tab and one weight tab per user.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pasti/internal/core"
	"pasti/internal/ports"
)

const valueInput = "USER_ENTERED"

var (
	mealHeader   = []any{"Data", "Refeição", "Alimento", "Quantidade (g)", "Calorias"}
	weightHeader = []any{"Data", "Peso (kg)"}
)

var _ ports.Exporter = (*Client)(nil)

type Settings struct {
	SpreadsheetID string
	MealsSheet    string
	WeightsSheet  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	mealsBase     string
	weightsBase   string

	mu    sync.Mutex
	known map[string]bool
}

// New creates an exporter. opts are passed to the Sheets service, which is
// how credentials (or a test endpoint) are supplied.
func New(ctx context.Context, s Settings, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(s.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if s.MealsSheet == "" {
		s.MealsSheet = "Refeições"
	}
	if s.WeightsSheet == "" {
		s.WeightsSheet = "Peso"
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: s.SpreadsheetID,
		mealsBase:     s.MealsSheet,
		weightsBase:   s.WeightsSheet,
		known:         map[string]bool{},
	}, nil
}

// CredentialsFromEnv reads service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func CredentialsFromEnv(ctx context.Context) ([]goption.ClientOption, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

func (c *Client) MealsTab(u core.User) string {
	return tabName(c.mealsBase, u)
}

func (c *Client) WeightsTab(u core.User) string {
	return tabName(c.weightsBase, u)
}

func (c *Client) AppendMeal(ctx context.Context, u core.User, e core.MealEntry) error {
	tab := c.MealsTab(u)
	if err := c.ensureTab(ctx, tab, mealHeader); err != nil {
		return err
	}
	return c.appendRows(ctx, tab, "A:E", [][]any{mealRow(e)})
}

func (c *Client) AppendWeight(ctx context.Context, u core.User, s core.WeightSample) error {
	tab := c.WeightsTab(u)
	if err := c.ensureTab(ctx, tab, weightHeader); err != nil {
		return err
	}
	return c.appendRows(ctx, tab, "A:B", [][]any{weightRow(s)})
}

func (c *Client) ReplaceMeals(ctx context.Context, u core.User, entries []core.MealEntry) error {
	rows := make([][]any, 0, len(entries)+1)
	rows = append(rows, mealHeader)
	for _, e := range entries {
		rows = append(rows, mealRow(e))
	}
	return c.replace(ctx, c.MealsTab(u), "A:E", rows)
}

func (c *Client) ReplaceWeights(ctx context.Context, u core.User, samples []core.WeightSample) error {
	rows := make([][]any, 0, len(samples)+1)
	rows = append(rows, weightHeader)
	for _, s := range samples {
		rows = append(rows, weightRow(s))
	}
	return c.replace(ctx, c.WeightsTab(u), "A:B", rows)
}

func (c *Client) appendRows(ctx context.Context, tab, cols string, rows [][]any) error {
	rng := a1(tab, cols)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	return nil
}

func (c *Client) replace(ctx context.Context, tab, cols string, rows [][]any) error {
	if err := c.ensureTab(ctx, tab, nil); err != nil {
		return err
	}
	rng := a1(tab, cols)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	start := a1(tab, "A1")
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInput).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", start, err)
	}
	slog.InfoContext(ctx, "Sheet tab replaced", "tab", tab, "rows", len(rows)-1)
	return nil
}

// ensureTab creates tab when the spreadsheet lacks it and writes header as
// its first row. Tabs seen once are not looked up again.
func (c *Client) ensureTab(ctx context.Context, tab string, header []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known[tab] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.known[sh.Properties.Title] = true
		}
	}
	if c.known[tab] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", tab, err)
	}
	if header != nil {
		start := a1(tab, "A1")
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption(valueInput).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header %s: %w", start, err)
		}
	}
	c.known[tab] = true
	slog.InfoContext(ctx, "Sheet tab created", "tab", tab)
	return nil
}

func tabName(base string, u core.User) string {
	return fmt.Sprintf("%s - %s", base, u.Name)
}

// a1 builds a range on a quoted tab name.
func a1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}

func mealRow(e core.MealEntry) []any {
	return []any{e.Date, e.Slot, e.FoodName, e.QuantityGrams, e.Calories}
}

func weightRow(s core.WeightSample) []any {
	return []any{s.Date, s.WeightKg}
}
