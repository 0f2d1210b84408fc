// Package email holds helpers for composing messages to bidders.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Normalize validates an address and returns it trimmed and lowercased.
func Normalize(address string) (string, bool) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return "", false
	}
	return strings.ToLower(parsed.Address), true
}

// DisplayName guesses a friendly first name from the local part of an
// address, e.g. "jane.doe+bids@example.com" becomes "Jane". Falls back to
// "there" so greetings read "Hi there".
func DisplayName(address string) string {
	local := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		local = address[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for _, p := range parts {
		if strings.IndexFunc(p, unicode.IsLetter) >= 0 {
			return capitalize(p)
		}
	}
	return "there"
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
