package analytics

import (
	"net/url"
	"strings"
)

const maxReferrerLength = 500

// SanitizeReferrer strips query parameters and fragments and truncates the
// result. Unparseable referrers become "".
func SanitizeReferrer(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	// Keep only scheme + host + path
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.User = nil

	sanitized := parsed.String()
	if len(sanitized) > maxReferrerLength {
		return sanitized[:maxReferrerLength]
	}
	return sanitized
}

// ExtractCountryCode normalizes the Cloudflare CF-IPCountry header.
// Returns "" when the header is missing, malformed or unknown (XX).
func ExtractCountryCode(cfIPCountry string) string {
	code := strings.ToUpper(strings.TrimSpace(cfIPCountry))
	if len(code) != 2 || code == "XX" {
		return ""
	}
	return code
}
