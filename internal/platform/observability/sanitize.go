package observability

import (
	"strings"
	"unicode"
)

// Upper bounds, in runes, for request derived values written to log fields.
const (
	routeLimit   = 180
	methodLimit  = 10
	userIDLimit  = 64
	roleLimit    = 16
	addressLimit = 64
	fieldLimit   = 256
)

// sanitizeString drops control characters and truncates to limit runes so request data cannot
// forge log lines.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = fieldLimit
	}
	var b strings.Builder
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute cleans a route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, routeLimit)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(strings.ToUpper(method), methodLimit)
}

// SanitizeUserID bounds identifiers written to logs.
func SanitizeUserID(uid string) string {
	return sanitizeString(uid, userIDLimit)
}

// SanitizeRole bounds the role claim written to logs.
func SanitizeRole(role string) string {
	return sanitizeString(role, roleLimit)
}
