package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/portalo/portalo/internal/model"
)

// ExportHeader is the fixed CSV column set.
var ExportHeader = []string{
	"timestamp",
	"event_type",
	"link_id",
	"referrer",
	"country",
	"device",
	"browser",
	"visitor_id",
	"time_to_click_ms",
}

// ExportFilename builds the attachment name from the page id prefix and the
// current UTC date.
func ExportFilename(pageID string, now time.Time) string {
	prefix := pageID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("analytics-%s-%s.csv", prefix, now.UTC().Format(dateLayout))
}

// WriteCSV writes the header and one row per event. Fields containing
// commas, quotes or newlines are quoted with internal quotes doubled.
func WriteCSV(w io.Writer, events []model.AnalyticsEvent) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(ExportHeader))
	for _, e := range events {
		record[0] = e.CreatedAt.UTC().Format(time.RFC3339Nano)
		record[1] = string(e.EventType)
		record[2] = deref(e.LinkID)
		record[3] = deref(e.Referrer)
		record[4] = deref(e.Country)
		record[5] = deref(e.Device)
		record[6] = deref(e.Browser)
		record[7] = deref(e.VisitorID)
		record[8] = ""
		if e.TimeToClickMs != nil {
			record[8] = strconv.Itoa(*e.TimeToClickMs)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
