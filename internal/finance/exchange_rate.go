package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultFXURL = "https://api.frankfurter.app"

// FX converts currencies with frankfurter.app rates.
type FX struct {
	baseURL string
	client  *http.Client
}

func NewFX(baseURL string) *FX {
	if baseURL == "" {
		baseURL = DefaultFXURL
	}
	return &FX{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: 10 * time.Second}}
}

type Rate struct {
	Provider  string  `json:"provider"`
	Base      string  `json:"base"`
	Symbol    string  `json:"symbol"`
	Rate      float64 `json:"rate"`
	Date      string  `json:"date"`
	Amount    float64 `json:"amount,omitempty"`
	Converted float64 `json:"converted,omitempty"`
}

// Latest returns the latest base→symbol rate, converting amount when it is
// positive.
func (f *FX) Latest(ctx context.Context, base, symbol string, amount float64) (Rate, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if base == "" || symbol == "" {
		return Rate{}, errors.New("missing 'base' or 'symbol'")
	}
	if len(base) != 3 || len(symbol) != 3 {
		return Rate{}, errors.New("currency codes must be ISO 4217 (3 letters)")
	}
	if amount < 0 {
		return Rate{}, errors.New("amount must be >= 0")
	}

	u := fmt.Sprintf("%s/latest?from=%s&to=%s", f.baseURL, url.QueryEscape(base), url.QueryEscape(symbol))
	slog.InfoContext(ctx, "FX request", "base", base, "symbol", symbol, "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Rate{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "HTTP error", "url", u, "err", err)
		return Rate{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		return Rate{}, fmt.Errorf("frankfurter http %d: %s", resp.StatusCode, body)
	}

	var p struct {
		Date  string             `json:"date"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return Rate{}, fmt.Errorf("decode error: %w (body=%s)", err, body)
	}
	val := p.Rates[symbol]
	if val == 0 {
		return Rate{}, fmt.Errorf("rate not found for %s (body=%s)", symbol, body)
	}

	r := Rate{Provider: "frankfurter.app", Base: base, Symbol: symbol, Rate: val, Date: p.Date}
	if amount > 0 {
		r.Amount = amount
		r.Converted = amount * val
	}
	return r, nil
}
