package catalog

import (
	"sort"
	"time"

	"github.com/rrepohub/rrepohub-backend/models"
)

// RecentLimit is the size of the recent uploads list.
const RecentLimit = 5

type Highlights struct {
	TotalDownloads int64        `json:"totalDownloads"`
	MostDownloaded *models.File `json:"mostDownloaded"`
	Newest         *models.File `json:"newest"`
}

// ComputeHighlights reduces records in one pass. Ties on either extreme go
// to the record seen first.
func ComputeHighlights(records []models.File) Highlights {
	var h Highlights
	var newestAt time.Time
	for i := range records {
		r := &records[i]
		h.TotalDownloads += r.Downloads
		if h.MostDownloaded == nil || r.Downloads > h.MostDownloaded.Downloads {
			h.MostDownloaded = r
		}
		at := ParseTimestamp(r.Date)
		if h.Newest == nil || at.After(newestAt) {
			h.Newest = r
			newestAt = at
		}
	}
	return h
}

// Recent returns at most n records ordered newest first. The sort is stable
// so equal timestamps keep their input order.
func Recent(records []models.File, n int) []models.File {
	sorted := make([]models.File, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ParseTimestamp(sorted[i].Date).After(ParseTimestamp(sorted[j].Date))
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ParseTimestamp parses an ISO-8601 creation date. Anything unparseable is
// the zero time, which orders last when sorting newest first.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
