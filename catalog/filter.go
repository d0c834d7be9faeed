package catalog

import (
	"strings"

	"github.com/google/uuid"

	"github.com/rrepohub/rrepohub-backend/models"
)

// Filter keeps the records that match both the category selector and the
// search term, preserving input order. A selector of All and a blank term
// each disable their dimension. Category matching is exact; name matching is
// a case-insensitive substring test.
func Filter(records []models.File, search, category string) []models.File {
	needle := ""
	if strings.TrimSpace(search) != "" {
		needle = strings.ToLower(search)
	}

	out := make([]models.File, 0, len(records))
	for _, r := range records {
		if category != All && r.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.Name), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ByUploader keeps the records whose uploader back-reference equals uid.
func ByUploader(records []models.File, uid uuid.UUID) []models.File {
	out := make([]models.File, 0)
	for _, r := range records {
		if r.UploaderID != nil && *r.UploaderID == uid {
			out = append(out, r)
		}
	}
	return out
}

// SearchUsers returns the profiles whose username contains term, ignoring
// case. A blank term matches nothing. Usernames are not unique so every
// match is returned.
func SearchUsers(users []models.User, term string) []models.User {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]models.User, 0)
	if term == "" {
		return out
	}
	for _, u := range users {
		if u.Username != "" && strings.Contains(strings.ToLower(u.Username), term) {
			out = append(out, u)
		}
	}
	return out
}
