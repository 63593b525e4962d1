package app

import (
	"net/url"
	"strings"
)

const preparedBinaryResultParam = "disable_prepared_binary_result"

// normalizeDBURL adds disable_prepared_binary_result=yes to URL-style
// connection strings unless the caller already set it. Keyword/value DSNs
// pass through untouched.
func normalizeDBURL(raw string, disablePreparedBinaryResult bool) string {
	parsed, ok := parseDBURL(raw)
	if !disablePreparedBinaryResult || !ok {
		return raw
	}

	query := parsed.Query()
	if query.Get(preparedBinaryResultParam) != "" {
		return raw
	}
	query.Set(preparedBinaryResultParam, "yes")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// dbNameFromURL extracts the database name for span attributes.
func dbNameFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if parsed, ok := parseDBURL(raw); ok {
		if name := strings.Trim(parsed.Path, "/ "); name != "" {
			return name
		}
	}

	for _, token := range strings.Fields(raw) {
		if name, found := strings.CutPrefix(token, "dbname="); found {
			if name = strings.Trim(name, `"' `); name != "" {
				return name
			}
		}
	}
	return ""
}

func parseDBURL(raw string) (*url.URL, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" {
		return nil, false
	}
	return parsed, true
}
