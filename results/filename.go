package results

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	filenamePattern      = regexp.MustCompile(`^(\d{6})_(\d{6})_(.+)\.json$`)
	sessionTokenPattern  = regexp.MustCompile(`^(FP|Q|R)[1-9]?$`)
	numberedTokenPattern = regexp.MustCompile(`^(FP|Q|R)[1-9]$`)
)

// FileInfo is everything an export filename encodes: the session id (the
// stem), the session timestamp and the trailing type token.
type FileInfo struct {
	SessionID string
	Date      time.Time
	TypeToken string
}

// ParseFilename parses the `YYMMDD_HHMMSS_<TYPE>.json` server naming scheme.
// Non-conforming names are rejected before any datastore access. The type
// token is returned raw even when unrecognized; callers decide whether to
// warn (see ValidTypeToken).
func ParseFilename(name string) (FileInfo, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return FileInfo{}, fmt.Errorf("%w: %q", ErrBadFilename, name)
	}

	date, err := parseStamp(m[1], m[2])
	if err != nil {
		return FileInfo{}, fmt.Errorf("%w: %q: %w", ErrBadFilename, name, err)
	}

	stem := strings.TrimSuffix(name, ".json")
	segments := strings.Split(stem, "_")
	return FileInfo{
		SessionID: stem,
		Date:      date,
		TypeToken: segments[len(segments)-1],
	}, nil
}

// ValidTypeToken reports whether a filename type token is one the server
// emits: FP, Q or R with an optional race/heat digit.
func ValidTypeToken(token string) bool {
	return sessionTokenPattern.MatchString(token)
}

// NormalizeSessionType merges the document's sessionType with the filename
// token. A numbered token beats a generic one from the other source; when
// both are numbered the document wins, when both are generic the filename
// wins. A generic winner stays generic: the pipeline never invents a "1".
func NormalizeSessionType(docType, fileToken string) string {
	switch {
	case numberedTokenPattern.MatchString(docType):
		return docType
	case numberedTokenPattern.MatchString(fileToken):
		return fileToken
	case sessionTokenPattern.MatchString(fileToken):
		return fileToken
	case sessionTokenPattern.MatchString(docType):
		return docType
	default:
		return docType
	}
}

// parseStamp converts the YYMMDD and HHMMSS filename segments to a local
// timestamp. Years are anchored at 2000.
func parseStamp(datePart, timePart string) (time.Time, error) {
	year, _ := strconv.Atoi(datePart[0:2])
	month, _ := strconv.Atoi(datePart[2:4])
	day, _ := strconv.Atoi(datePart[4:6])
	hour, _ := strconv.Atoi(timePart[0:2])
	minute, _ := strconv.Atoi(timePart[2:4])
	second, _ := strconv.Atoi(timePart[4:6])

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("impossible timestamp %s_%s", datePart, timePart)
	}
	stamp := time.Date(2000+year, time.Month(month), day, hour, minute, second, 0, time.Local)
	if stamp.Day() != day || stamp.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("impossible calendar date %s", datePart)
	}
	return stamp, nil
}
