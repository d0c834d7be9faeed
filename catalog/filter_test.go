package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrepohub/rrepohub-backend/models"
)

func sampleRecords() []models.File {
	return []models.File{
		{Name: "Report.pdf", Category: Docs, Downloads: 3, Date: "2026-01-03T10:00:00.000Z"},
		{Name: "report-final.pdf", Category: Docs, Downloads: 10, Date: "2026-01-02T10:00:00.000Z"},
		{Name: "movie.mp4", Category: Movies, Downloads: 1, Date: "2026-01-01T10:00:00.000Z"},
	}
}

func names(records []models.File) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func TestFilter_SearchAcrossAllCategories(t *testing.T) {
	got := Filter(sampleRecords(), "report", All)
	assert.Equal(t, []string{"Report.pdf", "report-final.pdf"}, names(got))
}

func TestFilter_CategoryOnly(t *testing.T) {
	got := Filter(sampleRecords(), "", Movies)
	require.Len(t, got, 1)
	assert.Equal(t, "movie.mp4", got[0].Name)
}

func TestFilter_AllReturnsInputUnchanged(t *testing.T) {
	in := sampleRecords()
	assert.Equal(t, in, Filter(in, "", All))
	assert.Equal(t, in, Filter(in, "   ", All))
}

func TestFilter_CategoryIsExact(t *testing.T) {
	in := sampleRecords()
	in = append(in, models.File{Name: "lower.pdf", Category: "docs"})

	got := Filter(in, "", Docs)
	for _, r := range got {
		assert.Equal(t, Docs, r.Category)
	}
	for _, r := range in {
		if r.Category != Docs {
			assert.NotContains(t, names(got), r.Name)
		}
	}
	assert.Len(t, got, 2)
}

func TestFilter_OutOfEnumerationOnlyVisibleUnderAll(t *testing.T) {
	in := []models.File{{Name: "odd", Category: "Podcasts"}}
	assert.Len(t, Filter(in, "", All), 1)
	for _, c := range Categories {
		assert.Empty(t, Filter(in, "", c), c)
	}
}

func TestFilter_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	tests := []struct {
		term string
		want []string
	}{
		{"REPORT", []string{"Report.pdf", "report-final.pdf"}},
		{"final", []string{"report-final.pdf"}},
		{".MP4", []string{"movie.mp4"}},
		{"report final", []string{}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Filter(sampleRecords(), tt.term, All)))
		})
	}
}

func TestFilter_Intersection(t *testing.T) {
	assert.Empty(t, Filter(sampleRecords(), "movie", Docs))
	assert.Equal(t, []string{"report-final.pdf"}, names(Filter(sampleRecords(), "final", Docs)))
}

func TestFilter_Idempotent(t *testing.T) {
	params := []struct{ search, category string }{
		{"", All}, {"report", All}, {"", Docs}, {"pdf", Docs}, {"x", Movies},
	}
	for _, p := range params {
		once := Filter(sampleRecords(), p.search, p.category)
		assert.Equal(t, once, Filter(once, p.search, p.category))
	}
}

func TestFilter_Empty(t *testing.T) {
	assert.Empty(t, Filter(nil, "report", All))
	assert.NotNil(t, Filter(nil, "", All))
}

func TestByUploader(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	in := []models.File{
		{Name: "a1", UploaderID: &alice, Category: Docs},
		{Name: "b1", UploaderID: &bob},
		{Name: "anon"},
		{Name: "a2", UploaderID: &alice, Category: Movies},
	}
	assert.Equal(t, []string{"a1", "a2"}, names(ByUploader(in, alice)))
	assert.Empty(t, ByUploader(in, uuid.New()))
}

func TestSearchUsers(t *testing.T) {
	users := []models.User{
		{Username: "NightOwl"},
		{Username: "owlbear"},
		{Username: ""},
		{Username: "owlbear"},
		{Username: "hawk"},
	}

	got := SearchUsers(users, "  OWL ")
	require.Len(t, got, 3)
	assert.Equal(t, "NightOwl", got[0].Username)
	assert.Equal(t, "owlbear", got[1].Username)
	assert.Equal(t, "owlbear", got[2].Username)

	assert.Empty(t, SearchUsers(users, "   "))
}

func TestParseSelector(t *testing.T) {
	got, err := ParseSelector("")
	require.NoError(t, err)
	assert.Equal(t, All, got)

	got, err = ParseSelector(Games)
	require.NoError(t, err)
	assert.Equal(t, Games, got)

	_, err = ParseSelector("games")
	assert.Error(t, err)
}
