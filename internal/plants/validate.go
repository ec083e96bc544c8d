package plants

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ErrInvalid is wrapped by every validation error of this package.
var ErrInvalid = errors.New("invalid input")

var (
	nameMaxLen    = 255
	noteMaxLen    = 5000
	tagMaxLen     = 50
	messageMaxLen = 500
	MaxFrequency  = 365
	MaxSnoozeDays = 30
	MaxDueYears   = 10
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Checks that name is not empty after trim, not longer than 255 characters
// and valid utf8. The string returned is the trimmed version of name.
func SanitizeName(name string) (string, error) {
	s := strings.TrimSpace(name)
	if len(s) == 0 {
		return "", invalid("name is empty")
	}
	if len(s) > nameMaxLen {
		return "", invalid("name length is greater than %d", nameMaxLen)
	}
	if !utf8.ValidString(s) {
		return "", invalid("name is not UTF-8")
	}
	return s, nil
}

// Checks that name is not longer than 255 characters after trim and is ascii.
// The string returned is the trimmed version of name.
func SanitizeSpecies(name string) (string, error) {
	s := strings.TrimSpace(name)
	if len(s) > nameMaxLen {
		return "", invalid("species length is greater than %d", nameMaxLen)
	}
	if !isAscii(s) {
		return "", invalid("species is not ASCII")
	}
	return s, nil
}

// SanitizeText trims an optional free text attribute and bounds its length.
func SanitizeText(field, value string) (string, error) {
	s := strings.TrimSpace(value)
	if len(s) > nameMaxLen {
		return "", invalid("%s length is greater than %d", field, nameMaxLen)
	}
	if !utf8.ValidString(s) {
		return "", invalid("%s is not UTF-8", field)
	}
	return s, nil
}

func SanitizeNoteBody(body string) (string, error) {
	s := strings.TrimSpace(body)
	if len(s) == 0 {
		return "", invalid("note is empty")
	}
	if len(s) > noteMaxLen {
		return "", invalid("note length is greater than %d", noteMaxLen)
	}
	if !utf8.ValidString(s) {
		return "", invalid("note is not UTF-8")
	}
	return s, nil
}

func SanitizeGiftMessage(msg string) (string, error) {
	s := strings.TrimSpace(msg)
	if len(s) > messageMaxLen {
		return "", invalid("message length is greater than %d", messageMaxLen)
	}
	if !utf8.ValidString(s) {
		return "", invalid("message is not UTF-8")
	}
	return s, nil
}

// SanitizeTags lower-cases, trims and dedupes tag names, keeping the order
// of first appearance.
func SanitizeTags(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		s := strings.ToLower(strings.TrimSpace(n))
		if len(s) == 0 {
			return nil, invalid("tag is empty")
		}
		if len(s) > tagMaxLen {
			return nil, invalid("tag %q is longer than %d", s, tagMaxLen)
		}
		if !utf8.ValidString(s) {
			return nil, invalid("tag is not UTF-8")
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// SanitizeEmail trims and lower-cases an address, and checks that it has one
// '@' separating non empty parts.
func SanitizeEmail(email string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(email))
	local, domain, found := strings.Cut(s, "@")
	if !found || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", invalid("email %q is malformed", email)
	}
	if strings.ContainsFunc(s, unicode.IsSpace) {
		return "", invalid("email %q contains spaces", email)
	}
	return s, nil
}

func CheckFrequency(days int) error {
	if days < 1 || days > MaxFrequency {
		return invalid("frequency must be between 1 and %d days", MaxFrequency)
	}
	return nil
}

func CheckSnooze(days int) error {
	if days < 1 || days > MaxSnoozeDays {
		return invalid("snooze must be between 1 and %d days", MaxSnoozeDays)
	}
	return nil
}

// CheckDueDate checks that a due date set by hand lies within MaxDueYears of
// today, in either direction.
func CheckDueDate(d, today Date) error {
	earliest := Date{today.AddDate(-MaxDueYears, 0, 0)}
	latest := Date{today.AddDate(MaxDueYears, 0, 0)}
	if d.Before(earliest) || d.After(latest) {
		return invalid("due date must be between %s and %s", earliest, latest)
	}
	return nil
}

// CheckSettings validates the user editable settings.
func CheckSettings(s UserSettings) error {
	if s.NotifyHour < 0 || s.NotifyHour > 23 {
		return invalid("notify hour must be between 0 and 23")
	}
	if s.Timezone == "" {
		return invalid("timezone is empty")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return invalid("unknown timezone %q", s.Timezone)
	}
	return nil
}

// Returns true if s contains only ASCII characters.
func isAscii(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
