// Package expression rewrites "1+2-3" style sequences so every number
// carries a prefix, e.g. "DDL_1 + DDL_2 - DDL_3".
package expression

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidCharacters = errors.New("input contains invalid characters: only numbers, +, and - are allowed")

	allowedPattern = regexp.MustCompile(`^[0-9\s+-]+$`)
	digitsPattern  = regexp.MustCompile(`^[0-9]+$`)
)

// AddPrefixes inserts "prefix_" before every numeric token of input and
// normalises operator spacing. An empty input yields an empty result.
func AddPrefixes(input, prefix string) (string, error) {
	if input == "" {
		return "", nil
	}
	if !allowedPattern.MatchString(input) {
		return "", ErrInvalidCharacters
	}

	tokenPrefix := ""
	if p := strings.TrimSpace(prefix); p != "" {
		tokenPrefix = p + "_"
	}

	var out strings.Builder
	for _, part := range splitOperators(input) {
		trimmed := strings.TrimSpace(part)
		switch {
		case trimmed == "":
		case trimmed == "+" || trimmed == "-":
			out.WriteString(" " + trimmed + " ")
		case digitsPattern.MatchString(trimmed):
			out.WriteString(tokenPrefix + trimmed)
		default:
			// e.g. "1 2": digits separated by spaces stay as typed.
			out.WriteString(trimmed)
		}
	}

	return strings.TrimSpace(out.String()), nil
}

// splitOperators splits s around '+' and '-', keeping each operator as its
// own element.
func splitOperators(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			parts = append(parts, s[start:i], s[i:i+1])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
