package media

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// ErrorHint is shown under every failed run.
const ErrorHint = "Try: Reduce duration • Check FFmpeg • Verify file integrity"

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// FormatProgress renders current out of total as "P% - message". P is 0
// when total is not positive.
func FormatProgress(current, total float64, message string) string {
	percent := 0
	if total > 0 {
		percent = int(current / total * 100)
	}
	return fmt.Sprintf("%d%% - %s", percent, message)
}

// DownloadFilename builds the name offered for the result. A single upload
// lends its base name; several uploads become "combined_audio".
func DownloadFilename(names []string, suffix string, mode Mode, format OutputFormat) string {
	base := "combined_audio"
	if len(names) == 1 {
		base = stripExt(filepath.Base(names[0]))
	}
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		suffix = mode.Suffix()
	}
	return fmt.Sprintf("%s_%s.%s", base, suffix, format)
}

func stripExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
