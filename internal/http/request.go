package http

import (
	"net/http"
	"strconv"
	"strings"
)

const maxTopN = 100

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// parseYear reads the {year} path segment.
func parseYear(r *http.Request) (int, error) {
	raw := r.PathValue("year")
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 || year > 9999 {
		return 0, badRequest("invalid year '" + raw + "'")
	}
	return year, nil
}

// parseTop reads ?top=N, falling back to def when absent.
func parseTop(r *http.Request, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("top"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxTopN {
		return 0, badRequest("invalid top '" + raw + "': must be between 1 and 100")
	}
	return n, nil
}

// parseBool reads an optional boolean query flag; absent means false.
func parseBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("invalid " + key + " '" + raw + "'")
	}
	return v, nil
}

// queryList collects repeated and comma-separated values of key, dropping blanks.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = sanitizeInput(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
