package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pasti/internal/core"
)

const testSpreadsheet = "sheet-id"

// fakeSheets serves the subset of the Sheets v4 API the exporter calls.
type fakeSheets struct {
	mu       sync.Mutex
	tabs     []string
	gets     int
	appended map[string][][]any
	updated  map[string][][]any
	cleared  []string
	failAll  bool
}

func newFakeSheets(tabs ...string) *fakeSheets {
	return &fakeSheets{tabs: tabs, appended: map[string][][]any{}, updated: map[string][][]any{}}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}

	prefix := "/v4/spreadsheets/" + testSpreadsheet
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == prefix:
		f.gets++
		ss := gsheet.Spreadsheet{SpreadsheetId: testSpreadsheet}
		for _, t := range f.tabs {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: t}})
		}
		json.NewEncoder(w).Encode(ss)
	case r.Method == http.MethodPost && path == prefix+":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.tabs = append(f.tabs, rq.AddSheet.Properties.Title)
			}
		}
		json.NewEncoder(w).Encode(gsheet.BatchUpdateSpreadsheetResponse{SpreadsheetId: testSpreadsheet})
	case strings.HasPrefix(path, prefix+"/values/"):
		rng := strings.TrimPrefix(path, prefix+"/values/")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(rng, ":append"):
			var vr gsheet.ValueRange
			json.NewDecoder(r.Body).Decode(&vr)
			rng = strings.TrimSuffix(rng, ":append")
			f.appended[rng] = append(f.appended[rng], vr.Values...)
		case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
			f.cleared = append(f.cleared, strings.TrimSuffix(rng, ":clear"))
		case r.Method == http.MethodPut:
			var vr gsheet.ValueRange
			json.NewDecoder(r.Body).Decode(&vr)
			f.updated[rng] = vr.Values
		default:
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Settings{SpreadsheetID: testSpreadsheet},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestClient_AppendMealCreatesTab(t *testing.T) {
	fake := newFakeSheets()
	c := newTestClient(t, fake)
	u := core.NewUser("Milena")
	ctx := context.Background()

	e := core.NewMealEntry("2024-01-01", "Almoço", "Maçã", 150, 52)
	if err := c.AppendMeal(ctx, u, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.AppendMeal(ctx, u, e); err != nil {
		t.Fatalf("second append: %v", err)
	}

	if len(fake.tabs) != 1 || fake.tabs[0] != "Refeições - Milena" {
		t.Fatalf("unexpected tabs: %v", fake.tabs)
	}
	if fake.gets != 1 {
		t.Fatalf("tab lookup must be cached, got %d gets", fake.gets)
	}
	header := fake.updated["'Refeições - Milena'!A1"]
	if len(header) != 1 || header[0][1] != "Refeição" {
		t.Fatalf("header not written: %v", fake.updated)
	}
	rows := fake.appended["'Refeições - Milena'!A:E"]
	if len(rows) != 2 || rows[0][2] != "Maçã" || rows[0][3] != 150.0 || rows[0][4] != 78.0 {
		t.Fatalf("unexpected appended rows: %v", fake.appended)
	}
}

func TestClient_AppendWeightUsesExistingTab(t *testing.T) {
	fake := newFakeSheets("Peso - Raul")
	c := newTestClient(t, fake)

	if err := c.AppendWeight(context.Background(), core.NewUser("Raul"), core.WeightSample{Date: "2024-01-15", WeightKg: 68}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fake.tabs) != 1 || len(fake.updated) != 0 {
		t.Fatalf("existing tab must not be recreated: tabs=%v updated=%v", fake.tabs, fake.updated)
	}
	rows := fake.appended["'Peso - Raul'!A:B"]
	if len(rows) != 1 || rows[0][0] != "2024-01-15" || rows[0][1] != 68.0 {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestClient_ReplaceMeals(t *testing.T) {
	fake := newFakeSheets("Refeições - Milena")
	c := newTestClient(t, fake)
	entries := []core.MealEntry{
		core.NewMealEntry("2024-01-01", "Almoço", "Maçã", 150, 52),
		core.NewMealEntry("2024-01-02", "Jantar", "Arroz", 100, 130),
	}
	if err := c.ReplaceMeals(context.Background(), core.NewUser("Milena"), entries); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "'Refeições - Milena'!A:E" {
		t.Fatalf("tab not cleared: %v", fake.cleared)
	}
	rows := fake.updated["'Refeições - Milena'!A1"]
	if len(rows) != 3 || rows[0][0] != "Data" || rows[2][2] != "Arroz" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestClient_PropagatesAPIErrors(t *testing.T) {
	fake := newFakeSheets()
	fake.failAll = true
	c := newTestClient(t, fake)
	err := c.AppendWeight(context.Background(), core.NewUser("Raul"), core.WeightSample{Date: "2024-01-15", WeightKg: 68})
	if err == nil || !strings.Contains(err.Error(), "get spreadsheet") {
		t.Fatalf("expected get spreadsheet error, got %v", err)
	}
}

func TestA1QuotesTabNames(t *testing.T) {
	if got := a1("Peso - D'Ávila", "A:B"); got != "'Peso - D''Ávila'!A:B" {
		t.Fatalf("unexpected range %q", got)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := CredentialsFromEnv(context.Background()); err == nil {
		t.Fatal("expected missing credentials error")
	}

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/non/existent/file.json")
	if _, err := CredentialsFromEnv(context.Background()); err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
	opts, err := CredentialsFromEnv(context.Background())
	if err != nil || len(opts) != 2 {
		t.Fatalf("unexpected options: %v err=%v", opts, err)
	}
}
