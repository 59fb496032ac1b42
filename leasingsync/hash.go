package leasingsync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// rawString renders a raw cell for hashing and coercion. JSON numbers decode
// as float64; integral ones print without the trailing ".0" so "450" and 450
// hash identically.
func rawString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// ContentHash computes a canonical sha256 over a dataset payload. Rows are
// projected onto the dataset's canonical fields (through the resolved field
// index), rendered in fixed field order, then sorted by the dataset's sort
// key with the full rendering as tiebreak. The digest is therefore stable
// under row reordering, header renames covered by aliases, and ragged rows,
// but changes whenever any canonical value changes.
func ContentHash(spec *DatasetSpec, index FieldIndex, rows []RawRow) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		fields := make([]string, 0, len(spec.Fields))
		for _, f := range spec.Fields {
			header, ok := index[f]
			if !ok {
				fields = append(fields, "")
				continue
			}
			fields = append(fields, rawString(row[header]))
		}
		key := make([]string, 0, len(spec.SortKey))
		for _, f := range spec.SortKey {
			if header, ok := index[f]; ok {
				key = append(key, rawString(row[header]))
			} else {
				key = append(key, "")
			}
		}
		lines = append(lines, strings.Join(key, "\x1f")+"\x1e"+strings.Join(fields, "\x1f"))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
