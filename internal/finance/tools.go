package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Neruzzz/toolchat/internal/tools"
)

type analyzeArgs struct {
	Query string `json:"query" jsonschema:"The user's question, e.g. Show me Apple's stock trend for the last 6 months."`
}

type historyArgs struct {
	Ticker string `json:"ticker" jsonschema:"stock ticker symbol, e.g. AAPL or TSLA"`
	Period string `json:"period,omitempty" jsonschema:"period to fetch: 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd or max (default 1y)"`
}

type holidaysArgs struct {
	BeforeDate string `json:"before_date,omitempty" jsonschema:"optional RFC3339 date, return holidays before this date"`
	AfterDate  string `json:"after_date,omitempty" jsonschema:"optional RFC3339 date, return holidays after this date"`
	MaxCount   int    `json:"max_count,omitempty" jsonschema:"optional maximum number of holidays"`
}

type fxArgs struct {
	Base   string  `json:"base" jsonschema:"base currency code (ISO 4217), e.g. EUR"`
	Symbol string  `json:"symbol" jsonschema:"target currency code (ISO 4217), e.g. USD"`
	Amount float64 `json:"amount,omitempty" jsonschema:"optional amount to convert, if omitted only the rate is returned"`
}

const (
	AnalyzeToolName = "analyze_stock_and_plot"

	AnalystNotInitialized = "Error: financial analyst is not initialized (model credential missing). Please check server logs."
)

// Services are the backends the finance tools call. A nil Analyst yields a
// stub answering with AnalystNotInitialized; other nil fields leave the
// matching tool out.
type Services struct {
	Analyst  *Analyst
	Market   *Market
	Holidays *Holidays
	FX       *FX
	Now      func() time.Time
}

func Tools(s Services) []tools.Tool {
	var out []tools.Tool
	analyze := tools.Define(AnalyzeToolName,
		"Analyzes a stock based on a natural language query, generates Python code to visualize it, executes the code in a sandbox, and saves the plot.",
		func(ctx context.Context, in analyzeArgs) (any, error) {
			return s.Analyst.Analyze(ctx, in.Query), nil
		})
	if s.Analyst == nil {
		out = append(out, tools.Unavailable(analyze, AnalystNotInitialized))
	} else {
		out = append(out, analyze)
	}
	if s.Market != nil {
		out = append(out, tools.Define("get_stock_history",
			"Fetches daily historical prices for a stock ticker over a period.",
			func(ctx context.Context, in historyArgs) (any, error) {
				h, err := s.Market.History(ctx, in.Ticker, in.Period)
				if err != nil {
					return fmt.Sprintf("Error fetching stock data: %v", err), nil
				}
				return h, nil
			}))
	}
	if s.Holidays != nil {
		out = append(out, tools.Define("get_market_holidays",
			"Gets public and market holidays. Each line is 'YYYY-MM-DD: Holiday Name'.",
			func(ctx context.Context, in holidaysArgs) (any, error) {
				q := HolidayQuery{MaxCount: in.MaxCount}
				if t, err := time.Parse(time.RFC3339, in.BeforeDate); err == nil {
					q.Before = t
				}
				if t, err := time.Parse(time.RFC3339, in.AfterDate); err == nil {
					q.After = t
				}
				lines, err := s.Holidays.List(ctx, q)
				if err != nil {
					return nil, err
				}
				return strings.Join(lines, "\n"), nil
			}))
	}
	if s.FX != nil {
		out = append(out, tools.Define("get_exchange_rate",
			"Get the latest FX rate or convert an amount between two currencies (ISO 4217 codes, e.g., EUR, USD).",
			func(ctx context.Context, in fxArgs) (any, error) {
				return s.FX.Latest(ctx, in.Base, in.Symbol, in.Amount)
			}))
	}

	now := s.Now
	if now == nil {
		now = time.Now
	}
	out = append(out, tools.Define("get_today_date",
		"Get today's date and time in RFC3339 format.",
		func(context.Context, struct{}) (any, error) {
			return now().Format(time.RFC3339), nil
		}))
	return out
}
