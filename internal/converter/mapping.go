package converter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nconklindev/sandbox/internal/types"
)

var (
	ErrKeysWithoutIndexes = errors.New("custom keys can only be used together with column indexes")

	indexSeparators = regexp.MustCompile(`[,;\s]+`)
	keySeparators   = regexp.MustCompile(`[,;]+`)
)

// ParseColumnIndexes reads a list like "0, 1;4 7". Blank input means all
// columns.
func ParseColumnIndexes(s string) ([]int, error) {
	var out []int
	for _, tok := range indexSeparators.Split(strings.TrimSpace(s), -1) {
		if tok == "" {
			continue
		}
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid column index %q: must be a whole number from 0", tok)
		}
		out = append(out, idx)
	}
	return out, nil
}

// ParseCustomKeys reads a list like "fullName, age; email". Keys may
// contain spaces; only commas and semicolons separate them.
func ParseCustomKeys(s string) []string {
	var out []string
	for _, tok := range keySeparators.Split(s, -1) {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// ParseMapping combines ParseColumnIndexes and ParseCustomKeys and checks
// that the two lists line up.
func ParseMapping(indexes, keys string) (types.Mapping, error) {
	idx, err := ParseColumnIndexes(indexes)
	if err != nil {
		return types.Mapping{}, err
	}
	m := types.Mapping{ColumnIndexes: idx, CustomKeys: ParseCustomKeys(keys)}
	if err := ValidateMapping(m); err != nil {
		return types.Mapping{}, err
	}
	return m, nil
}

// ValidateMapping applies the backend's rules before anything is uploaded.
func ValidateMapping(m types.Mapping) error {
	if len(m.CustomKeys) == 0 {
		return nil
	}
	if len(m.ColumnIndexes) == 0 {
		return ErrKeysWithoutIndexes
	}
	if len(m.CustomKeys) != len(m.ColumnIndexes) {
		return fmt.Errorf("custom keys (%d) must match column indexes (%d)", len(m.CustomKeys), len(m.ColumnIndexes))
	}
	return nil
}

// ResolveKeys predicts the JSON keys the backend will emit for data under m.
func ResolveKeys(data *types.FileData, m types.Mapping) []string {
	if len(m.ColumnIndexes) == 0 {
		var keys []string
		for _, k := range data.Keys {
			if k != "" {
				keys = append(keys, k)
			}
		}
		return keys
	}

	keys := make([]string, 0, len(m.ColumnIndexes))
	for i, idx := range m.ColumnIndexes {
		switch {
		case len(m.CustomKeys) > 0:
			keys = append(keys, m.CustomKeys[i])
		case idx < len(data.Keys) && data.Headers[idx] != "":
			keys = append(keys, data.Keys[idx])
		default:
			keys = append(keys, fmt.Sprintf("UNKNOWN_COL_%d", idx))
		}
	}
	return keys
}
