package analytics

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/portalo/portalo/internal/model"
)

func TestWriteCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	events := []model.AnalyticsEvent{
		{
			EventType: model.EventView,
			Referrer:  strPtr(`https://news.example/"quoted",story`),
			Country:   strPtr("US"),
			Device:    strPtr("desktop"),
			Browser:   strPtr("Firefox"),
			VisitorID: strPtr("v1"),
			CreatedAt: at,
		},
		{
			EventType:     model.EventClick,
			LinkID:        strPtr("l1"),
			TimeToClickMs: intPtr(1200),
			CreatedAt:     at.Add(time.Minute),
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, events); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2", len(records))
	}

	for i, col := range ExportHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}

	row := records[1]
	if row[0] != "2026-03-14T09:30:00Z" {
		t.Errorf("timestamp = %q", row[0])
	}
	if row[3] != `https://news.example/"quoted",story` {
		t.Errorf("referrer = %q", row[3])
	}
	if row[2] != "" || row[8] != "" {
		t.Errorf("null fields should be empty, got link_id=%q ttc=%q", row[2], row[8])
	}

	click := records[2]
	if click[1] != "click" || click[2] != "l1" || click[8] != "1200" {
		t.Errorf("click row = %v", click)
	}
}

func TestWriteCSV_HeaderOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "timestamp,event_type,link_id,referrer,country,device,browser,visitor_id,time_to_click_ms\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestExportFilename(t *testing.T) {
	t.Parallel()

	got := ExportFilename("abcdef12-3456-4789-8abc-def012345678", time.Date(2026, 3, 15, 23, 0, 0, 0, time.FixedZone("X", -3*3600)))
	if got != "analytics-abcdef12-2026-03-16.csv" {
		t.Errorf("ExportFilename = %q", got)
	}
}
