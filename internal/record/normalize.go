package record

import (
	"fmt"
	"strings"
)

// Synthetic relationship keys hold free text that arrived without a
// counterpart name.
const (
	generalRelationshipPrefix = "general_book_"
	listRelationshipPrefix    = "relationship_"
)

// shape is the closed set of forms a loosely typed field may take.
type shape int

const (
	shapeAbsent shape = iota
	shapeText
	shapeList
	shapeMapping
	shapeUnsupported
)

func shapeOf(v any) shape {
	if v == nil {
		return shapeAbsent
	}
	if _, ok := v.(string); ok {
		return shapeText
	}
	if _, ok := List(v); ok {
		return shapeList
	}
	if _, ok := Fields(v); ok {
		return shapeMapping
	}
	return shapeUnsupported
}

// IsSyntheticRelationship reports whether key was generated for free-text
// relationship input.
func IsSyntheticRelationship(key string) bool {
	return strings.HasPrefix(key, generalRelationshipPrefix) ||
		(strings.HasPrefix(key, listRelationshipPrefix) && strings.Contains(key, "_book_"))
}

// NormalizeRelationships converts a relationships value into a mapping of
// counterpart to label. n is the chapter or book number used in synthetic
// keys:
//
//	mapping -> merged as-is, scalar values stringified
//	string  -> {"general_book_<n>": text}
//	list    -> strings under "relationship_<i>_book_<n>", mappings merged
//	null    -> nothing
//
// Parts that fit none of these are reported as problems and skipped.
func NormalizeRelationships(v any, n int) (map[string]string, []string) {
	out := map[string]string{}
	var problems []string

	switch shapeOf(v) {
	case shapeAbsent:
	case shapeText:
		if text := strings.TrimSpace(v.(string)); text != "" {
			out[fmt.Sprintf("%s%d", generalRelationshipPrefix, n)] = text
		}
	case shapeMapping:
		problems = append(problems, mergeRelationshipMapping(out, v, "")...)
	case shapeList:
		items, _ := List(v)
		for i, item := range items {
			switch shapeOf(item) {
			case shapeText:
				if text := strings.TrimSpace(item.(string)); text != "" {
					out[fmt.Sprintf("%s%d_book_%d", listRelationshipPrefix, i, n)] = text
				}
			case shapeMapping:
				problems = append(problems, mergeRelationshipMapping(out, item, fmt.Sprintf("[%d]", i))...)
			case shapeAbsent:
			default:
				problems = append(problems, fmt.Sprintf("relationships[%d]: unsupported %s entry", i, Kind(item)))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("relationships: unsupported %s value", Kind(v)))
	}
	return out, problems
}

func mergeRelationshipMapping(dst map[string]string, v any, at string) []string {
	fields, _ := Fields(v)
	var problems []string
	for _, f := range fields {
		key := strings.TrimSpace(f.Key)
		if key == "" || f.Value == nil {
			continue
		}
		label, ok := String(f.Value)
		if !ok {
			problems = append(problems, fmt.Sprintf("relationships%s.%s: unsupported %s value", at, key, Kind(f.Value)))
			continue
		}
		dst[key] = strings.TrimSpace(label)
	}
	return problems
}

// NormalizeAbilities coerces an abilities value to a list of strings. A
// bare string becomes a one-element list; list members are stringified;
// anything else yields an empty list and a problem.
func NormalizeAbilities(v any) ([]string, []string) {
	var out []string
	var problems []string

	switch shapeOf(v) {
	case shapeAbsent:
	case shapeText:
		if s := strings.TrimSpace(v.(string)); s != "" {
			out = append(out, s)
		}
	case shapeList:
		items, _ := List(v)
		for i, item := range items {
			if item == nil {
				continue
			}
			s, ok := String(item)
			if !ok {
				problems = append(problems, fmt.Sprintf("abilities[%d]: unsupported %s entry", i, Kind(item)))
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("abilities: unsupported %s value", Kind(v)))
	}
	return out, problems
}
