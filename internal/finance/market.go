package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

var periods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

// Market reads daily price history from the Yahoo Finance chart API.
type Market struct {
	chartURL string
	client   *http.Client
}

func NewMarket(chartURL string) *Market {
	if chartURL == "" {
		chartURL = DefaultChartURL
	}
	if !strings.HasSuffix(chartURL, "/") {
		chartURL += "/"
	}
	return &Market{chartURL: chartURL, client: &http.Client{Timeout: 15 * time.Second}}
}

type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

type History struct {
	Ticker   string
	Currency string
	Bars     []Bar
}

// String renders the history as a fixed-width table.
func (h History) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s daily prices (%s)\n", h.Ticker, h.Currency)
	fmt.Fprintf(&b, "%-10s %10s %10s %10s %10s %12s\n", "Date", "Open", "High", "Low", "Close", "Volume")
	for _, bar := range h.Bars {
		fmt.Fprintf(&b, "%-10s %10.2f %10.2f %10.2f %10.2f %12d\n",
			bar.Date.Format(time.DateOnly), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}
	return b.String()
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches daily bars for ticker over period (1mo, 1y, max, ...).
// Days without a close price are skipped.
func (m *Market) History(ctx context.Context, ticker, period string) (History, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return History{}, fmt.Errorf("missing ticker")
	}
	if period == "" {
		period = "1y"
	}
	if !periods[period] {
		return History{}, fmt.Errorf("unsupported period %q", period)
	}

	u := m.chartURL + url.PathEscape(ticker) + "?" + url.Values{"range": {period}, "interval": {"1d"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return History{}, err
	}
	req.Header.Set("User-Agent", "toolchat/1.0 (+github.com/Neruzzz)")
	req.Header.Set("Accept", "application/json")

	slog.InfoContext(ctx, "Chart request", "ticker", ticker, "period", period)
	resp, err := m.client.Do(req)
	if err != nil {
		return History{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))

	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		if resp.StatusCode >= 400 {
			return History{}, fmt.Errorf("chart http %d", resp.StatusCode)
		}
		return History{}, fmt.Errorf("decode error: %w", err)
	}
	if e := cr.Chart.Error; e != nil {
		return History{}, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return History{}, fmt.Errorf("no data for %s", ticker)
	}

	r := cr.Chart.Result[0]
	q := r.Indicators.Quote[0]
	h := History{Ticker: ticker, Currency: r.Meta.Currency}
	for i, ts := range r.Timestamp {
		c := at(q.Close, i)
		if c == nil {
			continue
		}
		bar := Bar{Date: time.Unix(ts, 0).UTC(), Close: *c}
		if v := at(q.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(q.High, i); v != nil {
			bar.High = *v
		}
		if v := at(q.Low, i); v != nil {
			bar.Low = *v
		}
		if v := at(q.Volume, i); v != nil {
			bar.Volume = *v
		}
		h.Bars = append(h.Bars, bar)
	}
	return h, nil
}

func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}
