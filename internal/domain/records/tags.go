package records

import "strings"

// NormalizeTag trims and lowercases a raw tag. It returns "" for input that
// carries no tag.
func NormalizeTag(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// AddTag appends raw to tags when it is non-empty and not already present
// (case-insensitively). The input slice is never modified.
func AddTag(tags []string, raw string) []string {
	tag := NormalizeTag(raw)
	out := append(make([]string, 0, len(tags)+1), tags...)
	if tag == "" {
		return out
	}
	for _, t := range tags {
		if t == tag {
			return out
		}
	}
	return append(out, tag)
}

// RemoveTag drops tag from tags.
func RemoveTag(tags []string, tag string) []string {
	tag = NormalizeTag(tag)
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}

// NormalizeTags feeds each entry through AddTag, preserving first-seen order.
func NormalizeTags(raw []string) []string {
	out := []string{}
	for _, r := range raw {
		out = AddTag(out, r)
	}
	return out
}
