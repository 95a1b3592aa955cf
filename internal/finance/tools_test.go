package finance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Neruzzz/toolchat/internal/tools"
)

func TestTools_Registry(t *testing.T) {
	reg := tools.MustRegistry(Tools(Services{
		Analyst:  NewAnalyst(staticGen{out: "no code"}, &fakeRunner{}, t.TempDir(), nil),
		Market:   NewMarket(""),
		Holidays: NewHolidays(""),
		FX:       NewFX(""),
	})...)
	want := []string{"analyze_stock_and_plot", "get_exchange_rate", "get_market_holidays", "get_stock_history", "get_today_date"}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	res := reg.Invoke(context.Background(), tools.Call{Name: "analyze_stock_and_plot", Args: map[string]any{"query": "hello"}})
	if !strings.HasPrefix(res.Content, "Error: Could not extract Python code") {
		t.Errorf("analyze = %+v", res)
	}
}

func TestTools_AnalystUnavailable(t *testing.T) {
	reg := tools.MustRegistry(Tools(Services{Market: NewMarket("")})...)
	want := []string{"analyze_stock_and_plot", "get_stock_history", "get_today_date"}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	res := reg.Invoke(context.Background(), tools.Call{Name: AnalyzeToolName, Args: map[string]any{"query": "Tesla"}})
	if res.IsError || res.Content != AnalystNotInitialized {
		t.Fatalf("analyze = %+v, want the not-initialized message", res)
	}
}

func TestTools_TodayDate(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	reg := tools.MustRegistry(Tools(Services{Now: func() time.Time { return fixed }})...)
	res := reg.Invoke(context.Background(), tools.Call{Name: "get_today_date"})
	if res.Content != "2025-03-14T09:26:53Z" {
		t.Errorf("get_today_date = %+v", res)
	}
}

func TestTools_StockHistoryErrorIsText(t *testing.T) {
	reg := tools.MustRegistry(Tools(Services{Market: NewMarket("")})...)
	res := reg.Invoke(context.Background(), tools.Call{Name: "get_stock_history", Args: map[string]any{"ticker": "AAPL", "period": "forever"}})
	if res.IsError || res.Content != `Error fetching stock data: unsupported period "forever"` {
		t.Errorf("get_stock_history = %+v", res)
	}
}

func TestTools_ExchangeRate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" || r.URL.Query().Get("from") != "EUR" || r.URL.Query().Get("to") != "USD" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"EUR","date":"2025-03-14","rates":{"USD":1.25}}`))
	}))
	defer ts.Close()

	reg := tools.MustRegistry(Tools(Services{FX: NewFX(ts.URL)})...)
	res := reg.Invoke(context.Background(), tools.Call{Name: "get_exchange_rate", Args: map[string]any{"base": "eur", "symbol": "usd", "amount": 8}})
	want := `{"provider":"frankfurter.app","base":"EUR","symbol":"USD","rate":1.25,"date":"2025-03-14","amount":8,"converted":10}`
	if res.Content != want {
		t.Errorf("get_exchange_rate = %q, want %q", res.Content, want)
	}

	res = reg.Invoke(context.Background(), tools.Call{Name: "get_exchange_rate", Args: map[string]any{"base": "EURO", "symbol": "USD"}})
	if !res.IsError || !strings.Contains(res.Content, "ISO 4217") {
		t.Errorf("bad code = %+v", res)
	}
}

func TestMemoryRunLog(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryRunLog(2)
	for _, id := range []string{"a", "b", "c"} {
		_ = l.Record(ctx, Run{ID: id})
	}
	runs, _ := l.Recent(ctx, 5)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"c", "b"}, ids); diff != "" {
		t.Errorf("Recent mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenRunLog_InMemoryWithoutURI(t *testing.T) {
	l, closeFn, err := OpenRunLog(context.Background(), "", "toolchat")
	if err != nil {
		t.Fatalf("OpenRunLog() error: %v", err)
	}
	defer closeFn()
	if _, ok := l.(*MemoryRunLog); !ok {
		t.Fatalf("expected a MemoryRunLog, got %T", l)
	}
}
