package identity

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeE164 converts a raw inbound identity (which may be a chat id
// like "15551234567@c.us") into +<digits> form. Numbers outside the
// 6-15 digit E.164 range normalize to the empty string.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if idx := strings.IndexByte(value, '@'); idx >= 0 {
		value = value[:idx]
	}
	digits := strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
	if len(digits) < 6 || len(digits) > 15 {
		return ""
	}
	return "+" + digits
}
