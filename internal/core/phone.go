package core

import (
	"regexp"
	"strings"
)

var (
	// An optional +CC prefix and (area) group, then digits joined by single
	// spaces, dots or dashes. Lines are never crossed.
	phoneCandidateRe = regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?(?:\(\d{1,5}\)[ .-]?)?\d(?:[ .-]?\d){5,}`)

	dateShapeRe = regexp.MustCompile(`^\d{1,4}[.-]\d{1,2}[.-]\d{1,4}$`)
	yearRangeRe = regexp.MustCompile(`^(1[89]|20)\d{2} ?- ?(1[89]|20)\d{2}$`)
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15 // E.164
)

// PhoneNumbers returns the phone-number-like runs in text. National and
// international layouts are accepted; dates and year ranges are not.
func PhoneNumbers(text string) []string {
	var out []string
	for _, m := range phoneCandidateRe.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		n := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				n++
			}
		}
		if n < minPhoneDigits || n > maxPhoneDigits {
			continue
		}
		if dateShapeRe.MatchString(m) || yearRangeRe.MatchString(m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func HasPhoneNumber(text string) bool {
	return len(PhoneNumbers(text)) > 0
}
