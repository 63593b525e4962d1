package app

import (
	"regexp"
	"strings"
)

const maxTracedQueryLength = 512

var (
	queryCommentRegex    = regexp.MustCompile(`--[^\n]*`)
	queryWhitespaceRegex = regexp.MustCompile(`\s+`)
)

// formatDBQueryForTrace collapses a query onto one line for span
// attributes.
func formatDBQueryForTrace(query string) string {
	query = queryCommentRegex.ReplaceAllString(query, "")
	query = strings.TrimSpace(queryWhitespaceRegex.ReplaceAllString(query, " "))
	if len(query) <= maxTracedQueryLength {
		return query
	}

	return query[:maxTracedQueryLength] + "..."
}
