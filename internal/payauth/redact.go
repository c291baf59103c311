package payauth

const (
	redactPrefixLen = 10
	redactedMarker  = "[redacted]"
)

// RedactToken returns an opaque marker safe to log in place of a bearer
// token: the first 10 characters followed by "...". Tokens too short to keep
// a meaningful secret suffix are fully redacted.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= redactPrefixLen {
		return redactedMarker
	}
	return token[:redactPrefixLen] + "..."
}
