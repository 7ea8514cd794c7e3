package shift

import (
	"fmt"
	"strings"
)

// keySeparator joins the attendance fields that make up a shift identity key.
const keySeparator = "|"

// Key derives the shift identity key from an attendance response. The key is
// used purely for equality comparison: two attendance responses describe the
// same work shift iff their keys are equal. An empty check-in timestamp yields
// an empty key, meaning "no shift identity known".
func Key(checkInTime, shiftName, shiftStart, shiftEnd string) string {
	if checkInTime == "" {
		return ""
	}
	return strings.Join([]string{checkInTime, shiftName, shiftStart, shiftEnd}, keySeparator)
}

// NeedsReset reports whether local patrol state belongs to a different shift
// than the one just observed. Only when both keys are present and unequal is
// the stored session considered stale; if either key is absent the shift is
// conservatively assumed unchanged.
func NeedsReset(prevKey, newKey string) bool {
	return prevKey != "" && newKey != "" && prevKey != newKey
}

// Describe renders a human-readable shift description, e.g. "Pagi (07:00-15:00)".
func Describe(shiftName, shiftStart, shiftEnd string) string {
	if shiftName == "" {
		return ""
	}
	if shiftStart == "" || shiftEnd == "" {
		return shiftName
	}
	return fmt.Sprintf("%s (%s-%s)", shiftName, shiftStart, shiftEnd)
}

// IsShiftRelated reports whether a server-provided ineligibility reason refers
// to the user's schedule or shift. Such reasons are merged with the shift
// description before being surfaced.
func IsShiftRelated(reason string) bool {
	r := strings.ToLower(reason)
	for _, marker := range []string{"shift", "schedule", "jadwal", "jam kerja"} {
		if strings.Contains(r, marker) {
			return true
		}
	}
	return false
}
