package util

import (
	"strings"
	"unicode"
)

// NormalizePhone joins a country code and a national number and drops any
// whitespace. It's the key used for rate limiting and for logs.
func NormalizePhone(countryCode, phoneNumber string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, countryCode+phoneNumber)
}

// E164 returns the normalized phone with a leading plus, the format the
// provider expects.
func E164(countryCode, phoneNumber string) string {
	p := NormalizePhone(countryCode, phoneNumber)
	if strings.HasPrefix(p, "+") {
		return p
	}

	return "+" + p
}
