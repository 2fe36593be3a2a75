package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"revenue/internal/core"
	"revenue/internal/snapshot"
)

type appendCall struct {
	path   string
	query  map[string][]string
	values [][]any
}

func newFakeSheets(t *testing.T, status int) (*Client, *[]appendCall) {
	t.Helper()
	var mu sync.Mutex
	calls := []appendCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.Unmarshal(body, &vr)
		mu.Lock()
		calls = append(calls, appendCall{path: r.URL.Path, query: r.URL.Query(), values: vr.Values})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, `{"updates":{"updatedRange":"'2025 Выручка'!A7:K7","updatedRows":1}}`)
			return
		}
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"The caller does not have permission"}}`)
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return New(svc, "sheet-id", "Выручка", nil), &calls
}

func archivedDay() snapshot.Snapshot {
	return snapshot.Snapshot{
		Date: "2025-06-14",
		Time: core.EndOfDayTime,
		Total: core.Totals{
			TotalOrders:     12,
			TotalRevenue:    decimal.RequireFromString("2450.5"),
			DeliveryOrders:  8,
			DeliveryRevenue: decimal.NewFromInt(1600),
			OnsiteOrders:    4,
			OnsiteRevenue:   decimal.RequireFromString("850.5"),
		},
		Plan: core.Plan{Revenue: 991000, Orders: 4955},
	}
}

func TestAppendDay(t *testing.T) {
	c, calls := newFakeSheets(t, http.StatusOK)

	ref, err := c.AppendDay(context.Background(), archivedDay())
	require.NoError(t, err)
	assert.Equal(t, "'2025 Выручка'!A7:K7", ref)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.True(t, strings.HasSuffix(call.path, ":append"), call.path)
	assert.Contains(t, call.path, "2025 Выручка!A:K")
	assert.Equal(t, []string{"USER_ENTERED"}, call.query["valueInputOption"])
	assert.Equal(t, []string{"INSERT_ROWS"}, call.query["insertDataOption"])

	require.Len(t, call.values, 1)
	row := call.values[0]
	require.Len(t, row, 11)
	assert.Equal(t, "2025-06-14", row[0])
	assert.Equal(t, float64(12), row[1])
	assert.Equal(t, 2450.5, row[2])
	assert.Equal(t, float64(991000), row[9])
}

func TestAppendDay_APIError(t *testing.T) {
	c, _ := newFakeSheets(t, http.StatusForbidden)
	err := c.SaveArchive(context.Background(), archivedDay())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append to sheet 2025 Выручка")
}

func TestAppendDay_BadDate(t *testing.T) {
	c, calls := newFakeSheets(t, http.StatusOK)
	s := archivedDay()
	s.Date = "14.06.2025"
	_, err := c.AppendDay(context.Background(), s)
	require.Error(t, err)
	assert.Empty(t, *calls)
}

func TestAppendDay_NoService(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	_, err := c.AppendDay(context.Background(), archivedDay())
	assert.EqualError(t, err, "sheets service not initialized")
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	_, err := NewFromEnv(context.Background(), " ", "Выручка", nil)
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := NewFromEnv(context.Background(), "id", "Выручка", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Выручка", 2025, "2025 Выручка"},
		{" Выручка ", 2024, "2024 Выручка"},
		{"2023 Выручка", 2025, "2023 Выручка"},
		{"", 2025, ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}
