package catalog

import "fmt"

// ExternalSize is the size label recorded for link uploads.
const ExternalSize = "External"

// FormatSize renders a byte count the way the upload form displays it.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1048576:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	case bytes < 1073741824:
		return fmt.Sprintf("%.1f MB", float64(bytes)/1048576)
	default:
		return fmt.Sprintf("%.1f GB", float64(bytes)/1073741824)
	}
}
