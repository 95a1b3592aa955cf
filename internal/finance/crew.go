package finance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Neruzzz/toolchat/internal/llm"
)

// Agent is one prompted role in the crew.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
}

func (a Agent) system() string {
	return fmt.Sprintf("You are a %s.\nYour goal: %s\n%s", a.Role, a.Goal, a.Backstory)
}

var (
	QueryParser = Agent{
		Role: "Senior Financial Data Analyst",
		Goal: "Accurately interpret user queries to extract stock tickers and analysis requirements.",
		Backstory: "You are an expert at understanding financial requests. " +
			"You know exactly what data is needed to answer questions about stock trends, comparisons, and performance.",
	}
	CodeWriter = Agent{
		Role: "Python Financial Data Visualizer",
		Goal: "Write executable Python code to fetch data using yfinance and plot it using matplotlib.",
		Backstory: "You are a Python expert specializing in financial data visualization. You write clean, error-free code.\n" +
			"IMPORTANT: You MUST write code that saves the plot to a file named '" + PlotFile + "' in the current directory.\n" +
			"Do not use plt.show(). Use plt.savefig('" + PlotFile + "').\n" +
			"You should use the 'yfinance' library to get data.",
	}
	CodeReviewer = Agent{
		Role: "Senior Code Reviewer",
		Goal: "Review the Python code to ensure it is safe, correct, and saves the plot as requested.",
		Backstory: "You are a senior software engineer. You check code for errors and security issues.\n" +
			"You ensure the code uses yfinance and matplotlib correctly and saves the output to '" + PlotFile + "'.",
	}
)

const writerTask = `Based on the analysis, write a complete Python script.
The script must:
1. Import yfinance, pandas, and matplotlib.pyplot.
2. Download the stock data for the identified ticker and timeframe.
3. Plot the 'Close' price.
4. Set the title and labels correctly.
5. Save the plot to '` + PlotFile + `'.
6. Print 'Plot saved to ` + PlotFile + `' at the end.

Return ONLY the Python code block (markdown formatted).`

const reviewerTask = `Review the following script. Fix any error, remove anything that does not
fetch, plot or save the data, and make sure it saves the plot to '` + PlotFile + `'.

Return ONLY the final Python code block (markdown formatted).`

// Crew runs the parser, writer and reviewer agents in sequence and returns
// the final agent output.
type Crew struct {
	model  llm.Model
	review bool
}

type CrewOption func(*Crew)

// WithoutReview skips the reviewer step.
func WithoutReview() CrewOption {
	return func(c *Crew) { c.review = false }
}

func NewCrew(m llm.Model, opts ...CrewOption) *Crew {
	c := &Crew{model: m, review: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Crew) Run(ctx context.Context, query string) (string, error) {
	plan, err := llm.Complete(ctx, c.model, QueryParser.system(), fmt.Sprintf(
		"Analyze the following user query: '%s'.\n"+
			"Identify the stock ticker(s) and the timeframe mentioned.\n"+
			"If no timeframe is mentioned, default to '1y'.\n"+
			"Output a clear summary of what needs to be done.", query))
	if err != nil {
		return "", fmt.Errorf("parse query: %w", err)
	}
	slog.InfoContext(ctx, "Crew step finished", "agent", QueryParser.Role)

	script, err := llm.Complete(ctx, c.model, CodeWriter.system(),
		"Analysis:\n"+strings.TrimSpace(plan)+"\n\n"+writerTask)
	if err != nil {
		return "", fmt.Errorf("write code: %w", err)
	}
	slog.InfoContext(ctx, "Crew step finished", "agent", CodeWriter.Role)

	if !c.review {
		return script, nil
	}
	code, ok := ExtractCode(script)
	if !ok {
		return script, nil
	}
	reviewed, err := llm.Complete(ctx, c.model, CodeReviewer.system(),
		reviewerTask+"\n\n```python\n"+code+"\n```")
	if err != nil {
		return "", fmt.Errorf("review code: %w", err)
	}
	slog.InfoContext(ctx, "Crew step finished", "agent", CodeReviewer.Role)

	if _, ok := ExtractCode(reviewed); !ok {
		return script, nil
	}
	return reviewed, nil
}
