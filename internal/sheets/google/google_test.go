package google

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"sitepay/internal/core"
	ports "sitepay/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type recorded struct {
	method string
	path   string
	body   string
}

func newFakeSheets(t *testing.T) (*Client, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{r.Method, r.URL.Path, string(body)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return newWithService(svc, "sheet-id", "Entries"), &calls
}

func TestAppendRowsWritesHeaderOnce(t *testing.T) {
	c, calls := newFakeSheets(t)
	ctx := context.Background()
	row := ports.LedgerRow{EntryID: 1, SiteName: "Riverside", Kind: core.EntrySection, Name: "tiles", Amount: core.MoneyFromInt(40)}

	if err := c.AppendRows(ctx, []ports.LedgerRow{row}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.AppendRows(ctx, []ports.LedgerRow{row}); err != nil {
		t.Fatalf("append: %v", err)
	}

	var gets, puts, appends int
	for _, call := range *calls {
		switch {
		case call.method == http.MethodGet:
			gets++
		case call.method == http.MethodPut:
			puts++
			if !strings.Contains(call.body, "Entry ID") {
				t.Errorf("header write missing columns: %s", call.body)
			}
		case strings.HasSuffix(call.path, ":append"):
			appends++
			if !strings.Contains(call.body, "Riverside") {
				t.Errorf("append body missing row: %s", call.body)
			}
		}
	}
	if gets != 1 || puts != 1 || appends != 2 {
		t.Fatalf("gets=%d puts=%d appends=%d", gets, puts, appends)
	}
}

func TestAppendRowsEmptyIsNoop(t *testing.T) {
	c, calls := newFakeSheets(t)
	if err := c.AppendRows(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(*calls))
	}
}

func TestClearKeepsHeaderRow(t *testing.T) {
	c, calls := newFakeSheets(t)
	if err := c.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 1 || !strings.Contains((*calls)[0].path, "Entries!A2:J:clear") {
		t.Fatalf("unexpected calls %+v", *calls)
	}
}

func TestLoadCredentials(t *testing.T) {
	if _, err := loadCredentials(Options{}); err == nil {
		t.Fatal("expected error without credentials")
	}
	b, err := loadCredentials(Options{CredentialsJSON: `{"type":"service_account"}`, CredentialsFile: "/ignored"})
	if err != nil || !strings.Contains(string(b), "service_account") {
		t.Fatalf("inline JSON should win: %v", err)
	}
	if _, err := loadCredentials(Options{CredentialsFile: "/does/not/exist.json"}); err == nil {
		t.Fatal("expected read error")
	}
}
