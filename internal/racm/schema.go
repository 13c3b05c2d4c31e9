// Package racm defines the fixed 25-field Risk-and-Control-Matrix record
// schema and the accessor pair every read/write path must go through.
//
// The analysis service is not consistent about field naming: a record may key
// its values by human-readable label ("Risk Description") or by normalized
// key ("risk_description"), or mix both. Field and SetField encapsulate that
// precedence rule; nothing outside this package should branch on which key
// form exists.
package racm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Fields is the ordered schema of record labels. Positions are stable and
// shared with the server; do not reorder.
var Fields = []string{
	"Process Area", "Sub-Process", "Risk ID", "Risk Description", "Risk Category",
	"Risk Type", "Control ID", "Control Activity", "Control Objective", "Control Type",
	"Control Nature", "Control Frequency", "Control Owner",
	"Control description as per SOP", "Testing Attributes", "Evidence/Source",
	"Assertion Mapped", "Compliance Reference", "Risk Likelihood", "Risk Impact",
	"Risk Rating", "Mitigation Effectiveness", "Gaps/Weaknesses Identified",
	"Source Quote", "Extraction Confidence",
}

// RiskRatingIndex is the position of the categorical severity field, which
// sorts by severity rank instead of lexicographically.
const RiskRatingIndex = 20

// keys holds the normalized form of each label, derived once at init.
var keys = func() []string {
	ks := make([]string, len(Fields))
	for i, f := range Fields {
		ks[i] = NormalizeKey(f)
	}
	return ks
}()

// NormalizeKey converts a field label to its normalized key form:
// lowercase, runs of non-alphanumeric characters collapsed to a single
// underscore, leading/trailing underscores trimmed.
func NormalizeKey(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// Label returns the human-readable label for a field index.
func Label(i int) string {
	return Fields[i]
}

// Key returns the normalized key for a field index.
func Key(i int) string {
	return keys[i]
}

// FieldIndex resolves a label or normalized key (case-insensitive) to its
// position in the schema. The second return is false when no field matches.
func FieldIndex(name string) (int, bool) {
	for i, f := range Fields {
		if strings.EqualFold(name, f) || name == keys[i] {
			return i, true
		}
	}
	// Accept un-normalized spellings of keys too ("risk rating" -> index 20).
	norm := NormalizeKey(name)
	for i, k := range keys {
		if norm == k {
			return i, true
		}
	}
	return -1, false
}

// Entry is one RACM record. Values are strings; the server may key them by
// label, by normalized key, or both.
type Entry map[string]string

// UnmarshalJSON decodes a record, coercing scalar values to strings the way
// the service's loosely-typed JSON requires (numbers and booleans become
// their string forms, null becomes the empty string).
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Entry, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			out[k] = ""
		default:
			enc, err := json.Marshal(val)
			if err != nil {
				return err
			}
			out[k] = string(enc)
		}
	}
	*e = out
	return nil
}

// Field returns the value for field index i, trying the label form first,
// then the normalized key, defaulting to the empty string.
func (e Entry) Field(i int) string {
	if v, ok := e[Fields[i]]; ok {
		return v
	}
	if v, ok := e[keys[i]]; ok {
		return v
	}
	return ""
}

// SetField writes the value for field index i under whichever key form the
// entry already carries, preferring the label when both are present. A fresh
// field is created under the label form.
func (e Entry) SetField(i int, v string) {
	if _, ok := e[Fields[i]]; ok {
		e[Fields[i]] = v
		return
	}
	if _, ok := e[keys[i]]; ok {
		e[keys[i]] = v
		return
	}
	e[Fields[i]] = v
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// LabelMap serializes the entry to the full schema shape keyed by label,
// with every field present. This is the wire form for bulk updates.
func (e Entry) LabelMap() map[string]string {
	out := make(map[string]string, len(Fields))
	for i, f := range Fields {
		out[f] = e.Field(i)
	}
	return out
}

// CloneEntries deep-copies a sequence of entries.
func CloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// severityRanks orders the categorical Risk Rating values. Unrecognized
// values rank below "low".
var severityRanks = map[string]int{
	"critical": 4,
	"high":     3,
	"medium":   2,
	"low":      1,
}

// SeverityRank returns the sort rank for a Risk Rating value,
// case-insensitive, 0 for anything unrecognized.
func SeverityRank(v string) int {
	return severityRanks[strings.ToLower(strings.TrimSpace(v))]
}
