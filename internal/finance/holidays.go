package finance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const DefaultHolidaysURL = "https://www.officeholidays.com/ics/usa"

// Holidays reads public holidays from an iCal feed.
type Holidays struct {
	url    string
	client *http.Client
}

func NewHolidays(link string) *Holidays {
	if strings.TrimSpace(link) == "" {
		link = DefaultHolidaysURL
	}
	return &Holidays{url: link, client: &http.Client{Timeout: 10 * time.Second}}
}

// HolidayQuery filters the calendar. Zero values disable a filter.
type HolidayQuery struct {
	Before   time.Time
	After    time.Time
	MaxCount int
}

// List returns "YYYY-MM-DD: Name" lines in calendar order.
func (h *Holidays) List(ctx context.Context, q HolidayQuery) ([]string, error) {
	events, err := h.load(ctx)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, ev := range events {
		d, err := ev.GetAllDayStartAt()
		if err != nil {
			continue
		}
		if !q.Before.IsZero() && d.After(q.Before) {
			continue
		}
		if !q.After.IsZero() && d.Before(q.After) {
			continue
		}
		name := ""
		if p := ev.GetProperty(ics.ComponentPropertySummary); p != nil {
			name = p.Value
		}
		out = append(out, d.Format(time.DateOnly)+": "+name)
		if q.MaxCount > 0 && len(out) >= q.MaxCount {
			break
		}
	}
	return out, nil
}

func (h *Holidays) load(ctx context.Context) ([]*ics.VEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("calendar http %d", resp.StatusCode)
	}
	cal, err := ics.ParseCalendar(resp.Body)
	if err != nil {
		return nil, err
	}
	return cal.Events(), nil
}
