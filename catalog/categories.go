// Package catalog holds the pure filtering and aggregation rules behind the
// browse, profile and home views. Nothing here touches storage.
package catalog

import "fmt"

// All is the category selector that disables category filtering.
const All = "All"

const (
	Movies   = "Movies"
	Music    = "Music"
	Games    = "Games"
	Apps     = "Apps"
	Docs     = "Docs"
	Images   = "Images"
	Archives = "Archives"
)

// Categories is the closed set a file record may belong to, in display order.
var Categories = []string{Movies, Music, Games, Apps, Docs, Images, Archives}

func IsCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// ParseSelector validates a browse selector. Empty means All.
func ParseSelector(s string) (string, error) {
	if s == "" || s == All {
		return All, nil
	}
	if !IsCategory(s) {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return s, nil
}
