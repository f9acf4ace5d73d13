package ftpclient

import (
	"regexp"
	"strconv"
)

// dateRe matches the first contiguous 8-digit run in a filename. Archive
// names on the remote tree embed a zero-padded YYYYMMDD stamp, so integer
// comparison of the token is equivalent to chronological comparison.
var dateRe = regexp.MustCompile(`\d{8}`)

// AfterCutoff reports whether filename carries a date token strictly newer
// than cutoff (YYYYMMDD). Names without an 8-digit token are excluded:
// undated files cannot be placed in the incremental window.
func AfterCutoff(filename, cutoff string) bool {
	token := dateRe.FindString(filename)
	if token == "" {
		return false
	}

	fileDate, err := strconv.Atoi(token)
	if err != nil {
		return false
	}
	cutoffDate, err := strconv.Atoi(cutoff)
	if err != nil {
		return false
	}

	return fileDate > cutoffDate
}
