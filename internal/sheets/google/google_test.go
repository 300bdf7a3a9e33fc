package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"expensedash/internal/core"
	"expensedash/internal/sheets"
)

func TestCredentialsOption(t *testing.T) {
	dir := t.TempDir()
	credFile := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(credFile, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "inline json", cfg: Config{CredentialsJSON: `{"type":"service_account"}`}},
		{name: "file", cfg: Config{CredentialsFile: credFile}},
		{name: "missing file", cfg: Config{CredentialsFile: filepath.Join(dir, "nope.json")}, wantErr: "read service account file"},
		{name: "nothing", cfg: Config{}, wantErr: "missing service account credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := credentialsOption(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if opt == nil {
				t.Fatal("expected a client option")
			}
		})
	}
}

func TestNewWithOptions_MissingSpreadsheetID(t *testing.T) {
	_, err := NewWithOptions(context.Background(), Config{}, nil, goption.WithoutAuthentication())
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"Expenses", "Expenses"},
		{"%d Expenses", "2025 Expenses"},
		{"Summary %d", "Summary 2025"},
	}
	for _, tt := range tests {
		if got := sheetName(tt.pattern, 2025); got != tt.want {
			t.Errorf("sheetName(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Bob's Expenses"); got != "'Bob''s Expenses'" {
		t.Errorf("quoteSheet() = %q", got)
	}
}

type recordedCall struct {
	method string
	path   string
	query  string
	body   string
}

func TestExport(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recordedCall{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewWithOptions(context.Background(),
		Config{SpreadsheetID: "sheet-1", ExpensesSheet: "%d Expenses", SummarySheet: "Summary"},
		nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}

	snap := sheets.Snapshot{
		Expenses: []core.Expense{
			{ID: "1", CategoryID: "food", Description: "Lunch", Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, time.March, 5)},
		},
		Index:    core.CategoryIndex{"food": "Food"},
		Summary:  core.Dashboard{Period: core.MonthPeriod(2024, time.March), Total: core.Money{Cents: 1000}},
		Currency: "LKR",
		Taken:    time.Now(),
	}
	if err := client.Export(context.Background(), snap); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 4 {
		t.Fatalf("got %d API calls, want 4 (clear+update per tab)", len(calls))
	}

	clearExpenses, writeExpenses := calls[0], calls[1]
	if clearExpenses.method != http.MethodPost || !strings.HasSuffix(clearExpenses.path, ":clear") {
		t.Errorf("first call should clear, got %s %s", clearExpenses.method, clearExpenses.path)
	}
	if !strings.Contains(clearExpenses.path, "2024 Expenses") {
		t.Errorf("expenses tab should be year-prefixed, got path %s", clearExpenses.path)
	}
	if writeExpenses.method != http.MethodPut || !strings.Contains(writeExpenses.query, "valueInputOption=USER_ENTERED") {
		t.Errorf("second call should write with USER_ENTERED, got %s ?%s", writeExpenses.method, writeExpenses.query)
	}

	var vr struct {
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal([]byte(writeExpenses.body), &vr); err != nil {
		t.Fatalf("decode update body: %v", err)
	}
	if len(vr.Values) != 2 || vr.Values[1][2] != "Lunch" {
		t.Errorf("unexpected expense values %v", vr.Values)
	}

	if !strings.Contains(calls[2].path, "Summary") || !strings.HasSuffix(calls[2].path, ":clear") {
		t.Errorf("third call should clear the summary tab, got %s", calls[2].path)
	}
}

func TestExport_ClearFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
	}))
	defer srv.Close()

	client, err := NewWithOptions(context.Background(),
		Config{SpreadsheetID: "sheet-1"},
		nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}

	err = client.Export(context.Background(), sheets.Snapshot{Summary: core.Dashboard{Period: core.MonthPeriod(2024, time.March)}})
	if err == nil || !strings.Contains(err.Error(), `clear sheet "Expenses"`) {
		t.Fatalf("expected clear error, got %v", err)
	}
}
