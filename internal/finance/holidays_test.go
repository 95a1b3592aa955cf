package finance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const calendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:1\r\nDTSTART;VALUE=DATE:20250101\r\nSUMMARY:New Year's Day\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:2\r\nDTSTART;VALUE=DATE:20250704\r\nSUMMARY:Independence Day\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:3\r\nDTSTART;VALUE=DATE:20251225\r\nSUMMARY:Christmas Day\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestHolidays_List(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(calendar))
	}))
	defer ts.Close()
	h := NewHolidays(ts.URL)

	tests := []struct {
		name string
		q    HolidayQuery
		want []string
	}{
		{"all", HolidayQuery{}, []string{"2025-01-01: New Year's Day", "2025-07-04: Independence Day", "2025-12-25: Christmas Day"}},
		{"after", HolidayQuery{After: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, []string{"2025-07-04: Independence Day", "2025-12-25: Christmas Day"}},
		{"before", HolidayQuery{Before: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, []string{"2025-01-01: New Year's Day"}},
		{"max", HolidayQuery{MaxCount: 2}, []string{"2025-01-01: New Year's Day", "2025-07-04: Independence Day"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.List(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("List mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHolidays_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	if _, err := NewHolidays(ts.URL).List(context.Background(), HolidayQuery{}); err == nil {
		t.Error("404 accepted")
	}
}
