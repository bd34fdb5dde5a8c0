package utils

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// IntOrNone coerces a loosely-typed JSON value into an int.
// Returns nil when the value is absent or not a usable number.
func IntOrNone(v interface{}) *int {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		i := int(n)
		return &i
	case int:
		return &n
	case json.Number:
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return nil
		}
		return &i
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		return &i
	default:
		return nil
	}
}

// IntOrZero is IntOrNone with missing/malformed values collapsed to 0.
func IntOrZero(v interface{}) int {
	if i := IntOrNone(v); i != nil {
		return *i
	}
	return 0
}

// Stringify coerces a loosely-typed JSON value (string or number) into
// its string form. Returns "" for anything else.
func Stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}

var heightRegex = regexp.MustCompile(`s(\d+)p`)

// HeightFromLabel extracts a pixel height from a quality label such as
// "s720p". Returns nil when the label carries no height token.
func HeightFromLabel(label string) *int {
	matches := heightRegex.FindStringSubmatch(label)
	if len(matches) < 2 {
		return nil
	}
	height, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil
	}
	return &height
}

// StringsFromTags parses a loosely-typed tags field: a JSON list of
// {name} objects yields the non-empty names; any other shape yields
// nil rather than an error.
func StringsFromTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	type tag struct {
		Name string `json:"name"`
	}
	var tags []tag
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}

	names := lo.FilterMap(tags, func(t tag, _ int) (string, bool) {
		return t.Name, t.Name != ""
	})
	if len(names) == 0 {
		return nil
	}
	return names
}
