package convo

import "strings"

// digitsOf strips every non-digit rune from s.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// numberShaped reports whether s looks like a bare phone number: digits
// with optional formatting characters, carrying at least min digits.
func numberShaped(s string, min int) bool {
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == ' ' || r == '.':
		default:
			return false
		}
	}
	return digits >= min
}

// ExtractNumber derives a phone number for a message. A routable address
// like "5551979312345@s.whatsapp.net" yields the digits before the "@";
// failing that, a conversation reference that is itself number-shaped is
// used. Returns false when no number can be derived.
func (p Policy) ExtractNumber(rawAddress, conversationRef string) (string, bool) {
	if i := strings.IndexByte(rawAddress, '@'); i >= 0 {
		if digits := digitsOf(rawAddress[:i]); digits != "" {
			return digits, true
		}
	}
	if numberShaped(conversationRef, p.MinNumberDigits) {
		return digitsOf(conversationRef), true
	}
	return "", false
}

// NumberFromConversationID recovers the phone number embedded in a
// grouping key such as "whatsapp_5551979312345". Returns false when the
// key carries fewer digits than the policy minimum.
func (p Policy) NumberFromConversationID(id string) (string, bool) {
	digits := digitsOf(strings.TrimPrefix(id, p.GroupPrefix))
	if len(digits) < p.MinNumberDigits {
		return "", false
	}
	return digits, true
}
