// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"fmt"
	"strings"
)

// KeyValue parses a "key:value" or "key=value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to ':'.
// Returns the key, value, and a boolean indicating success.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{':'}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// Headers parses "key:value" strings into a map. Values are trimmed.
func Headers(headers []string) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	result := make(map[string]string, len(headers))
	for _, h := range headers {
		key, value, ok := KeyValue(h, ':')
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q (want key:value)", h)
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result, nil
}
