package power

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	xerrors "PowerPulse/internal/errors"
)

func mustWeek(t *testing.T, raw string) *WeekData {
	t.Helper()
	var week WeekData
	if err := json.Unmarshal([]byte(raw), &week); err != nil {
		t.Fatalf("decode week fixture: %v", err)
	}
	return &week
}

func writeWeekFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "week.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func sevenDayWeek() string {
	days := make([]string, 0, 7)
	for i := 1; i <= 7; i++ {
		days = append(days, fmt.Sprintf(
			`{"date":"2024-05-%02d","total_kwh":10,"peak_value":2.5,"devices":{"fridge":1}}`, i))
	}
	return `{"metadata":{"home":"demo"},"daily_usage":[` + strings.Join(days, ",") + `]}`
}

func TestLoadWellFormedWeek(t *testing.T) {
	path := writeWeekFile(t, sevenDayWeek())

	week, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(week.DailyUsage) != 7 {
		t.Fatalf("expected 7 daily records, got %d", len(week.DailyUsage))
	}
	if week.Metadata["home"] != "demo" {
		t.Fatalf("metadata not preserved: %+v", week.Metadata)
	}
}

func TestLoadMissingDailyUsage(t *testing.T) {
	path := writeWeekFile(t, `{"metadata":{}}`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected lookup error for missing daily_usage")
	}
	if xerrors.CodeOf(err) != CodeMissingField {
		t.Fatalf("expected %s, got %v", CodeMissingField, err)
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatalf("expected error for absent file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeWeekFile(t, `{"daily_usage": [`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestDayUsageTracksMissingFields(t *testing.T) {
	cases := []struct {
		raw     string
		missing string
	}{
		{`{"total_kwh":1,"peak_value":1,"devices":{}}`, "date"},
		{`{"date":"2024-05-01","peak_value":1,"devices":{}}`, "total_kwh"},
		{`{"date":"2024-05-01","total_kwh":1,"devices":{}}`, "peak_value"},
		{`{"date":"2024-05-01","total_kwh":1,"peak_value":1}`, "devices"},
		{`{"date":"2024-05-01","total_kwh":1,"peak_value":1,"devices":{}}`, ""},
	}
	for _, tc := range cases {
		var rec DayUsage
		if err := json.Unmarshal([]byte(tc.raw), &rec); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		if got := rec.missingField(); got != tc.missing {
			t.Fatalf("raw %s: expected missing %q, got %q", tc.raw, tc.missing, got)
		}
	}
}
