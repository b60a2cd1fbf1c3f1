package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
)

const fence = "```"

// Result is a classification decision. Index values refer to positions in
// the tab title list the request was built from.
type Result struct {
	NewGroups      map[string][]int `json:"newGroups"`
	ExistingGroups map[string][]int `json:"existingGroups"`

	// InvalidIndices counts index entries dropped because they were not
	// integers.
	InvalidIndices int `json:"-"`
}

var errMissingFields = errors.New("missing expected fields newGroups/existingGroups")

// ParseResponse extracts a Result from model output. It accepts strict JSON,
// JSON wrapped in a markdown code fence, and JSON surrounded by prose.
//
// A group field that is absent, null or not an object counts as empty; at
// least one of the two must be an object. Index entries that are not
// integers are dropped and counted in InvalidIndices.
func ParseResponse(raw string) (*Result, error) {
	candidate := extractJSON(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, &ParseError{Raw: raw, Cause: err}
	}

	out := &Result{
		NewGroups:      map[string][]int{},
		ExistingGroups: map[string][]int{},
	}
	foundNew, badNew := decodeGroups(fields["newGroups"], &out.NewGroups)
	foundExisting, badExisting := decodeGroups(fields["existingGroups"], &out.ExistingGroups)
	if !foundNew && !foundExisting {
		return nil, &ParseError{Raw: raw, Cause: errMissingFields}
	}
	out.InvalidIndices = badNew + badExisting
	return out, nil
}

// decodeGroups decodes a {name: [index...]} object into dst. Anything other
// than an object is reported as not found and leaves dst untouched.
func decodeGroups(v json.RawMessage, dst *map[string][]int) (bool, int) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] != '{' {
		return false, 0
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(v, &entries); err != nil {
		return false, 0
	}

	decoded := make(map[string][]int, len(entries))
	invalid := 0
	for name, entry := range entries {
		indices, bad := decodeIndices(entry)
		decoded[name] = indices
		invalid += bad
	}
	*dst = decoded
	return true, invalid
}

// decodeIndices keeps the integral numbers of a JSON array. A value that is
// not an array counts as one invalid entry.
func decodeIndices(v json.RawMessage) ([]int, int) {
	out := []int{}
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		return out, 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return out, 1
	}
	bad := 0
	for _, item := range items {
		var f float64
		if bytes.Equal(item, []byte("null")) || json.Unmarshal(item, &f) != nil ||
			f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			bad++
			continue
		}
		out = append(out, int(f))
	}
	return out, bad
}

// extractJSON strips a leading markdown fence and any prose around the
// outermost braces.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, fence) {
		lines := strings.Split(s, "\n")
		start, end := -1, -1
		for i, line := range lines {
			if !strings.HasPrefix(strings.TrimSpace(line), fence) {
				continue
			}
			if start < 0 {
				start = i
				continue
			}
			end = i
			break
		}
		if start >= 0 && end > start {
			s = strings.Join(lines[start+1:end], "\n")
		}
	}

	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first >= 0 && last > first {
		s = s[first : last+1]
	}
	return s
}
