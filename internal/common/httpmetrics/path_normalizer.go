package httpmetrics

import (
	"regexp"
	"strings"
)

var (
	uuidRegex  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	tokenRegex = regexp.MustCompile(`^[0-9a-fA-F]{32,}$`)
)

func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}

	parts := strings.Split(path, "/")
	for i, part := range parts {
		switch {
		case part == "":
		case uuidRegex.MatchString(part):
			parts[i] = "{id}"
		case tokenRegex.MatchString(part), isNumeric(part):
			parts[i] = "{param}"
		}
	}

	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
