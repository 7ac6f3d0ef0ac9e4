package messaging

import "strings"

// NormalizeChatID turns a gateway chat identifier into an E.164-ish phone
// string. Gateway ids arrive as "2348090000001@c.us" or bare digits with
// punctuation; everything after the first "@" is dropped and only digits
// survive. Returns "" when the remaining digits are not a plausible number.
func NormalizeChatID(value string) string {
	value = strings.TrimSpace(value)
	if at := strings.IndexByte(value, '@'); at >= 0 {
		value = value[:at]
	}
	digits := sanitizePhone(value)
	if len(digits) < 6 || len(digits) > 15 {
		return ""
	}
	return "+" + digits
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
