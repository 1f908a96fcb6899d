package utils

import (
	"regexp"
	"strings"
)

var (
	periodPattern   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	controlChars    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
)

// IsPeriod reports whether s is a payroll period written as YYYY-MM
func IsPeriod(s string) bool {
	return periodPattern.MatchString(strings.TrimSpace(s))
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// SanitizeFileName keeps letters, digits, hyphens and underscores so the
// result is safe as a single path element
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.NewReplacer("/", "", "\\", "").Replace(name)
	return unsafeFileChars.ReplaceAllString(name, "")
}
