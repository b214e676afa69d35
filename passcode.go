package main

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var passcodeRe = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

// NormalizePasscode folds compatibility characters (full-width digits and
// letters typed on mobile keyboards) to ASCII, trims spaces and validates
// the result as exactly six alphanumerics.
func NormalizePasscode(raw string) (string, error) {
	code := strings.TrimSpace(norm.NFKC.String(raw))
	if !passcodeRe.MatchString(code) {
		return "", ErrInvalidPasscode
	}
	return code, nil
}
